package permit

import (
	"testing"

	"github.com/holiman/uint256"
	"github.com/stretchr/testify/require"

	"permitledger/crypto"
)

func TestCanonicalMessageFormat(t *testing.T) {
	var recipient crypto.Address
	recipient[0] = 0x42
	domain := Domain{NetworkID: "casper-test", ContractID: "hash-9f3c"}

	got := string(domain.Message(recipient, uint256.NewInt(5), 0, 1_700_000_000))
	want := "Casper Message:\nx402-casper:casper-test:hash-9f3c:" + recipient.String() + ":5:0:1700000000"
	require.Equal(t, want, got)
}

func TestCanonicalMessageLargeValues(t *testing.T) {
	var recipient crypto.Address
	maxAmount := new(uint256.Int).SetAllOne()

	got := string(CanonicalMessage("P", "n", "c", recipient, maxAmount, ^uint64(0), ^uint64(0)))
	want := "P\nx402-casper:n:c:" + recipient.String() +
		":115792089237316195423570985008687907853269984665640564039457584007913129639935" +
		":18446744073709551615:18446744073709551615"
	require.Equal(t, want, got)
}

func TestCanonicalMessageBindsEveryField(t *testing.T) {
	var r1, r2 crypto.Address
	r2[5] = 1
	base := Domain{NetworkID: "casper", ContractID: "hash-01"}
	ref := string(base.Message(r1, uint256.NewInt(10), 1, 100))

	variants := []string{
		string(Domain{NetworkID: "casper-test", ContractID: "hash-01"}.Message(r1, uint256.NewInt(10), 1, 100)),
		string(Domain{NetworkID: "casper", ContractID: "hash-02"}.Message(r1, uint256.NewInt(10), 1, 100)),
		string(base.Message(r2, uint256.NewInt(10), 1, 100)),
		string(base.Message(r1, uint256.NewInt(11), 1, 100)),
		string(base.Message(r1, uint256.NewInt(10), 2, 100)),
		string(base.Message(r1, uint256.NewInt(10), 1, 101)),
	}
	for i, v := range variants {
		require.NotEqual(t, ref, v, "variant %d", i)
	}
	require.Equal(t, ref, string(base.Message(r1, uint256.NewInt(10), 1, 100)))
	require.Equal(t, string(base.Message(r1, nil, 1, 100)), string(base.Message(r1, uint256.NewInt(0), 1, 100)))
}

func TestDomainValidate(t *testing.T) {
	require.NoError(t, Domain{NetworkID: "casper-test", ContractID: "hash-01"}.Validate())

	for name, domain := range map[string]Domain{
		"empty network":      {NetworkID: " ", ContractID: "hash-01"},
		"empty contract":     {NetworkID: "casper"},
		"separator network":  {NetworkID: "a:b", ContractID: "hash-01"},
		"separator contract": {NetworkID: "casper", ContractID: "hash:01"},
		"newline":            {NetworkID: "casper\nx402", ContractID: "hash-01"},
	} {
		t.Run(name, func(t *testing.T) {
			require.Error(t, domain.Validate())
			key, err := crypto.GeneratePrivateKey(crypto.SchemeEd25519)
			require.NoError(t, err)
			_, err = Sign(key, domain, key.PublicKey().Address(), uint256.NewInt(1), 0, 1)
			require.Error(t, err)
		})
	}
}
