package critic

import (
	"context"
	"testing"

	"github.com/pkg/errors"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/nikogura/resume-forge/pkg/document"
	"github.com/nikogura/resume-forge/pkg/jobs"
	"github.com/nikogura/resume-forge/pkg/provider/providertest"
	"github.com/nikogura/resume-forge/pkg/store"
)

type stubInspector struct {
	info document.Info
	err  error
}

func (s stubInspector) Inspect(context.Context, string, int) (document.Info, error) {
	return s.info, s.err
}

func newTestCritic(t *testing.T, p *providertest.Scripted, inspector document.Inspector) *Critic {
	t.Helper()
	dir := t.TempDir()

	repo := jobs.NewFileRepository(dir)
	require.NoError(t, repo.Put(jobs.JobRecord{
		ID:          "job-1",
		Title:       "Staff SRE",
		Company:     "Acme",
		Description: "Kubernetes platform reliability and observability.",
	}))

	status := store.NewStatusStore(dir, nil)
	_, err := status.Update("job-1", func(s *store.SessionStatus) {
		s.HasArtifact = true
		s.LastArtifactPath = "/tmp/job-1.pdf"
	})
	require.NoError(t, err)

	return &Critic{
		Provider:  p,
		Inspector: inspector,
		Jobs:      repo,
		Status:    status,
		Log:       store.NewCritiqueLog(dir, nil),
		DataDir:   dir,
	}
}

func TestCritique(t *testing.T) {
	p := &providertest.Scripted{Replies: []string{`{
		"rating": 14,
		"strengths": ["Clear metrics", "  "],
		"weaknesses": ["Summary is long"],
		"recommendations": ["Quantify on-call impact", ""],
		"analysis": "Solid."
	}`}}
	c := newTestCritic(t, p, stubInspector{info: document.Info{PageCount: 2, Text: "JANE DOE RESUME TEXT"}})

	record, _, err := c.Critique(context.Background(), "job-1")
	require.NoError(t, err)

	assert.Equal(t, 10, record.Rating)
	assert.Equal(t, []string{"Clear metrics"}, record.Strengths)
	assert.Equal(t, []string{"Quantify on-call impact"}, record.Recommendations)
	assert.Equal(t, "platform", record.Domain)

	prompt := p.Requests()[0].Prompt
	assert.Contains(t, prompt, "JANE DOE RESUME TEXT")
	assert.Contains(t, prompt, "DOMAIN: platform")

	assert.True(t, c.Status.Get("job-1").CritiqueDone)
	assert.Equal(t, []string{"Quantify on-call impact"}, c.Log.Recommendations("job-1"))
}

func TestCritiqueTextUnavailable(t *testing.T) {
	p := &providertest.Scripted{Replies: []string{`{"rating": 0, "strengths": [], "weaknesses": [], "recommendations": [], "analysis": ""}`}}
	c := newTestCritic(t, p, stubInspector{err: errors.New("broken pdf")})

	record, _, err := c.Critique(context.Background(), "job-1")
	require.NoError(t, err)

	assert.Equal(t, 1, record.Rating)
	assert.Empty(t, record.Recommendations)
	assert.Contains(t, p.Requests()[0].Prompt, TextUnavailable)
}

func TestCritiqueRejectsWrongTypes(t *testing.T) {
	tests := []struct {
		name  string
		reply string
	}{
		{name: "rating as string", reply: `{"rating": "8", "strengths": [], "weaknesses": [], "recommendations": [], "analysis": "x"}`},
		{name: "recommendations as string", reply: `{"rating": 8, "strengths": [], "weaknesses": [], "recommendations": "do more", "analysis": "x"}`},
		{name: "non-string item", reply: `{"rating": 8, "strengths": [1], "weaknesses": [], "recommendations": [], "analysis": "x"}`},
		{name: "missing analysis", reply: `{"rating": 8, "strengths": [], "weaknesses": [], "recommendations": []}`},
		{name: "not json", reply: `Looks great to me!`},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			p := &providertest.Scripted{Replies: []string{tt.reply}}
			c := newTestCritic(t, p, stubInspector{info: document.Info{Text: "resume"}})

			_, _, err := c.Critique(context.Background(), "job-1")

			var verr *ValidationError
			require.True(t, errors.As(err, &verr), "expected ValidationError, got %v", err)
			assert.False(t, c.Status.Get("job-1").CritiqueDone)

			history, histErr := c.Log.History("job-1")
			require.NoError(t, histErr)
			assert.Empty(t, history)
		})
	}
}

func TestCritiqueRequiresArtifact(t *testing.T) {
	p := &providertest.Scripted{Replies: []string{"{}"}}
	c := newTestCritic(t, p, stubInspector{})
	_, err := c.Status.Update("job-1", func(s *store.SessionStatus) { s.LastArtifactPath = "" })
	require.NoError(t, err)

	_, _, err = c.Critique(context.Background(), "job-1")
	assert.Error(t, err)
	assert.Equal(t, 0, p.Calls())
}

func TestClampRating(t *testing.T) {
	assert.Equal(t, 1, ClampRating(-3))
	assert.Equal(t, 1, ClampRating(0.4))
	assert.Equal(t, 7, ClampRating(6.5))
	assert.Equal(t, 10, ClampRating(10))
	assert.Equal(t, 10, ClampRating(99))
}
