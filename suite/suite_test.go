package suite

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestIsPQCGroup(t *testing.T) {
	assert.True(t, IsPQCGroup(XWingMLDSA65))
	assert.True(t, IsPQCGroup(MLKEM768MLDSA65))
	assert.False(t, IsPQCGroup(X25519Ed25519))
	assert.False(t, IsPQCGroup(P256ECDSA))
	assert.False(t, IsPQCGroup(WireID(0xF001)))
}

func TestClassifyTier(t *testing.T) {
	assert.Equal(t, TierHybridPQC, ClassifyTier(XWingMLDSA65))
	assert.Equal(t, TierPurePQC, ClassifyTier(MLKEM768MLDSA65))
	assert.Equal(t, TierClassic, ClassifyTier(X25519Ed25519))
	assert.Equal(t, TierClassic, ClassifyTier(P256ECDSA))
	assert.Equal(t, TierExperimental, ClassifyTier(WireID(0xF042)))
	assert.Equal(t, TierUnknown, ClassifyTier(WireID(0x2222)))
}

func TestLookupKnownSuites(t *testing.T) {
	for _, id := range KnownSuites() {
		info, ok := Lookup(id)
		require.True(t, ok)
		assert.Equal(t, id, info.WireID)
		assert.NotEmpty(t, info.Name)
	}
}

func TestLookupUnknownSuite(t *testing.T) {
	_, ok := Lookup(WireID(0xBEEF))
	assert.False(t, ok)
}

func TestSuiteTableLengths(t *testing.T) {
	cases := []struct {
		id                WireID
		kemPub, kemPriv   int
		sigPub, sigPriv   int
		keyShare, respLen int
	}{
		{XWingMLDSA65, 1216, 2432, 1952, 4032, 1120, 0},
		{MLKEM768MLDSA65, 1184, 96, 1952, 64, 1088, 0},
		{X25519Ed25519, 32, 32, 32, 64, 32, 32},
		{P256ECDSA, 65, 32, 65, 32, 65, 65},
	}
	for _, c := range cases {
		info, ok := Lookup(c.id)
		require.True(t, ok)
		assert.Equal(t, c.kemPub, info.KEMPubLen, "KEMPubLen for %s", info.Name)
		assert.Equal(t, c.kemPriv, info.KEMPrivLen, "KEMPrivLen for %s", info.Name)
		assert.Equal(t, c.sigPub, info.SigPubLen, "SigPubLen for %s", info.Name)
		assert.LessOrEqual(t, c.sigPriv, info.SigPrivLen, "SigPrivLen for %s", info.Name)
		assert.Equal(t, c.keyShare, info.KeyShareABLen, "KeyShareABLen for %s", info.Name)
		assert.Equal(t, c.respLen, info.ResponderShareLen, "ResponderShareLen for %s", info.Name)
	}
}

func TestValidateKeyShareLen(t *testing.T) {
	assert.NoError(t, ValidateKeyShareLen(X25519Ed25519, 32))
	assert.Error(t, ValidateKeyShareLen(X25519Ed25519, 31))
	assert.Error(t, ValidateKeyShareLen(WireID(0xDEAD), 32))
}

func TestValidateResponderShareLen(t *testing.T) {
	assert.NoError(t, ValidateResponderShareLen(XWingMLDSA65, 0))
	assert.Error(t, ValidateResponderShareLen(XWingMLDSA65, 10))
	assert.NoError(t, ValidateResponderShareLen(P256ECDSA, 65))
}

func TestSelectSuitePreferPQC(t *testing.T) {
	offered := []WireID{XWingMLDSA65, MLKEM768MLDSA65, X25519Ed25519}
	accepted := map[WireID]bool{X25519Ed25519: true, MLKEM768MLDSA65: true}

	selected, ok := SelectSuite(offered, accepted, false)
	require.True(t, ok)
	assert.Equal(t, MLKEM768MLDSA65, selected)
}

func TestSelectSuiteRequirePQCExcludesClassic(t *testing.T) {
	offered := []WireID{XWingMLDSA65, X25519Ed25519}
	accepted := map[WireID]bool{X25519Ed25519: true}

	_, ok := SelectSuite(offered, accepted, true)
	assert.False(t, ok)
}

func TestSelectSuiteNoOverlap(t *testing.T) {
	offered := []WireID{XWingMLDSA65}
	accepted := map[WireID]bool{P256ECDSA: true}

	_, ok := SelectSuite(offered, accepted, false)
	assert.False(t, ok)
}

func TestUnknownSuiteStringer(t *testing.T) {
	u := Unknown{ID: WireID(0xABCD)}
	assert.Equal(t, "unknown(0xabcd)", u.String())
}
