package crypto_test

import (
	"testing"

	"github.com/skybridge-core/p2pcore/crypto"
	_ "github.com/skybridge-core/p2pcore/internal/cryptoinit"
	"github.com/skybridge-core/p2pcore/suite"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type fakeProbe struct {
	nativeOK bool
	libOK    bool
}

func (f fakeProbe) CheckNativePQCAvailable() bool  { return f.nativeOK }
func (f fakeProbe) CheckLibraryPQCAvailable() bool { return f.libOK }

func TestSelectProviderPreferPQCChoosesNativeWhenAvailable(t *testing.T) {
	p, result, err := crypto.SelectProvider(crypto.PolicyPreferPQC, uint16(suite.MLKEM768MLDSA65), fakeProbe{nativeOK: true})
	require.NoError(t, err)
	assert.Equal(t, crypto.TierNativePQC, result.ChosenTier)
	assert.False(t, result.FellBack)
	assert.Equal(t, crypto.TierNativePQC, p.Tier())
}

func TestSelectProviderPreferPQCFallsBackToClassic(t *testing.T) {
	p, result, err := crypto.SelectProvider(crypto.PolicyPreferPQC, uint16(suite.X25519Ed25519), fakeProbe{})
	require.NoError(t, err)
	assert.Equal(t, crypto.TierClassic, result.ChosenTier)
	assert.False(t, result.FellBack)
	assert.Equal(t, crypto.TierClassic, p.Tier())
}

func TestSelectProviderRequirePQCReturnsUnavailableWithoutPQC(t *testing.T) {
	p, result, err := crypto.SelectProvider(crypto.PolicyRequirePQC, uint16(suite.MLKEM768MLDSA65), fakeProbe{})
	require.Error(t, err)
	assert.ErrorIs(t, err, crypto.ErrProviderUnavailable)
	assert.Equal(t, crypto.TierUnavailable, result.ChosenTier)
	assert.True(t, result.FellBack)
	assert.Equal(t, crypto.TierUnavailable, p.Tier())
}

func TestSelectProviderClassicOnly(t *testing.T) {
	p, result, err := crypto.SelectProvider(crypto.PolicyClassicOnly, uint16(suite.X25519Ed25519), fakeProbe{nativeOK: true})
	require.NoError(t, err)
	assert.Equal(t, crypto.TierClassic, result.ChosenTier)
	assert.Equal(t, crypto.TierClassic, p.Tier())
}
