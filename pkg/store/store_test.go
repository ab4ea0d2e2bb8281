package store

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type testOptions struct {
	Person string `json:"person"`
	Mode   string `json:"mode"`
}

func baseInput() FingerprintInput {
	return FingerprintInput{
		JobID:           "job-1",
		ProfileHash:     "abc123",
		ProfileModTime:  time.Date(2026, 1, 2, 3, 4, 5, 6, time.UTC),
		Options:         testOptions{Person: "first", Mode: "ic"},
		TemplateVersion: "v1",
	}
}

func TestFingerprintStable(t *testing.T) {
	a, err := Fingerprint(baseInput())
	require.NoError(t, err)

	b, err := Fingerprint(baseInput())
	require.NoError(t, err)

	assert.Equal(t, a, b)
	assert.Len(t, a, 64)

	// Same instant in another zone is the same input.
	in := baseInput()
	in.ProfileModTime = in.ProfileModTime.In(time.FixedZone("EST", -5*3600))
	c, err := Fingerprint(in)
	require.NoError(t, err)
	assert.Equal(t, a, c)
}

func TestFingerprintSensitivity(t *testing.T) {
	base, err := Fingerprint(baseInput())
	require.NoError(t, err)

	mutations := map[string]func(*FingerprintInput){
		"job":      func(in *FingerprintInput) { in.JobID = "job-2" },
		"hash":     func(in *FingerprintInput) { in.ProfileHash = "def456" },
		"mtime":    func(in *FingerprintInput) { in.ProfileModTime = in.ProfileModTime.Add(time.Nanosecond) },
		"options":  func(in *FingerprintInput) { in.Options = testOptions{Person: "third", Mode: "ic"} },
		"template": func(in *FingerprintInput) { in.TemplateVersion = "v2" },
	}

	for name, mutate := range mutations {
		t.Run(name, func(t *testing.T) {
			in := baseInput()
			mutate(&in)

			fp, err := Fingerprint(in)
			require.NoError(t, err)
			assert.NotEqual(t, base, fp)
		})
	}
}

func TestSortRecent(t *testing.T) {
	t0 := time.Date(2026, 1, 1, 0, 0, 0, 0, time.UTC)
	records := []TailoredContent{
		{RecordID: "a", CreatedAt: t0, Seq: 1},
		{RecordID: "b", CreatedAt: t0.Add(time.Second), Seq: 2},
		{RecordID: "c", CreatedAt: t0.Add(time.Second), Seq: 3},
		{RecordID: "d", CreatedAt: t0, Seq: 4},
	}

	sortRecent(records)

	ids := make([]string, 0, len(records))
	for _, r := range records {
		ids = append(ids, r.RecordID)
	}
	assert.Equal(t, []string{"c", "b", "d", "a"}, ids)
}
