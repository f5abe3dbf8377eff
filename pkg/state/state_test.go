package state

import (
	"testing"

	"github.com/stretchr/testify/require"
)

func signatureFixture() Signature {
	return Signature{
		Countries:      []string{"KG", "RU"},
		UpdatedFrom:    "2024-06-24T00:00:00.00Z",
		DateFilterMode: "auto",
		SliceBy:        "month",
		SliceDateField: "docStartDate",
		SliceStart:     "2024-01-01",
		SliceEnd:       "2024-02-15",
	}
}

func TestKey(t *testing.T) {
	require.Equal(t, "KG|2024-01", Key("KG", "2024-01"))
}

func TestEntryRoundTrip(t *testing.T) {
	s := NewState()

	_, ok := s.Entry("KG", "2024-01")
	require.False(t, ok, "fresh state has no entries")

	s.SetEntry("KG", "2024-01", CursorState{NextSkip: 60, WrittenInRun: 55})

	entry, ok := s.Entry("KG", "2024-01")
	require.True(t, ok)
	require.Equal(t, 60, entry.NextSkip)
	require.Equal(t, 55, entry.WrittenInRun)
	require.False(t, entry.Done)
	require.NotEmpty(t, entry.UpdatedAt, "SetEntry stamps the save time")
}

func TestSetEntryOnNilMap(t *testing.T) {
	s := &State{}
	s.SetEntry("RU", "all", CursorState{NextSkip: 30})

	entry, ok := s.Entry("RU", "all")
	require.True(t, ok)
	require.Equal(t, 30, entry.NextSkip)
}

func TestSignatureEqual(t *testing.T) {
	base := signatureFixture()

	require.True(t, base.Equal(signatureFixture()))

	changed := signatureFixture()
	changed.Countries = []string{"KG"}
	require.False(t, base.Equal(changed))

	changed = signatureFixture()
	changed.Countries = []string{"RU", "KG"}
	require.False(t, base.Equal(changed), "country order is significant")

	changed = signatureFixture()
	changed.UpdatedFrom = ""
	require.False(t, base.Equal(changed))

	changed = signatureFixture()
	changed.SliceBy = "year"
	require.False(t, base.Equal(changed))
}

func TestVerifySignature(t *testing.T) {
	current := signatureFixture()

	t.Run("fresh state accepts any signature", func(t *testing.T) {
		require.NoError(t, NewState().VerifySignature(current))
	})

	t.Run("matching signature accepted", func(t *testing.T) {
		stored := signatureFixture()
		s := &State{Signature: &stored, Countries: map[string]CursorState{}}
		require.NoError(t, s.VerifySignature(current))
	})

	t.Run("mismatch is fatal", func(t *testing.T) {
		stored := signatureFixture()
		stored.SliceEnd = "2024-12-31"
		s := &State{Signature: &stored, Countries: map[string]CursorState{}}
		require.Error(t, s.VerifySignature(current))
	})
}
