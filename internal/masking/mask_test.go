package masking

import (
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/tuncerburak97/gizli/internal/model"
	"github.com/tuncerburak97/gizli/internal/privacy"
)

func strPtr(s string) *string { return &s }

func newTestEntry(kind model.EntryKind) model.TraceEntry {
	d := 250 * time.Millisecond
	return model.TraceEntry{
		Kind: kind,
		Headers: map[string]string{
			"Authorization": "Bearer token",
			"Accept":        "application/json",
		},
		Body:          []byte(`{"password":"hunter2","user":{"name":"ada"}}`),
		Timestamp:     time.Date(2024, 5, 1, 12, 0, 0, 0, time.UTC),
		Duration:      &d,
		RequestID:     "req-1",
		OperationName: strPtr("GetUser"),
		Query:         strPtr(`query GetUser { user(id: "42") { name } }`),
		Variables:     map[string]any{"id": "42"},
	}
}

func TestMask_None(t *testing.T) {
	entry := newTestEntry(model.Request{Method: "GET", URL: "https://api.example.com/u?token=abc"})

	got := Mask(entry, privacy.NewPolicy(privacy.LevelNone))

	assert.Equal(t, entry.Kind, got.Kind)
	assert.Equal(t, entry.Headers, got.Headers)
	assert.Equal(t, entry.Body, got.Body)
	assert.Equal(t, entry.Variables, got.Variables)
	require.NotNil(t, got.Query)
	assert.Equal(t, `query GetUser { user(id: "***") { name } }`, *got.Query, "literal masking still applies")
}

func TestMask_NoneWithoutLiteralMasking(t *testing.T) {
	entry := newTestEntry(model.Request{Method: "GET", URL: "https://h/p"})

	got := Mask(entry, privacy.NewPolicy(privacy.LevelNone, privacy.WithQueryLiteralMasking(false)))

	require.NotNil(t, got.Query)
	assert.Equal(t, *entry.Query, *got.Query)
}

func TestMask_Private(t *testing.T) {
	code := 200
	entry := newTestEntry(model.Response{Method: "POST", URL: "https://h/graphql?a=1&b=2", StatusCode: &code})
	p := privacy.NewPolicy(privacy.LevelPrivate,
		privacy.WithExemptHeaders("accept"),
		privacy.WithExemptQueries("b"),
		privacy.WithExemptBodyFields("user"),
	)

	got := Mask(entry, p)

	resp, ok := got.Kind.(model.Response)
	require.True(t, ok)
	assert.Equal(t, "POST", resp.Method)
	assert.Equal(t, "https://h/graphql?a=***&b=2", resp.URL)
	require.NotNil(t, resp.StatusCode)
	assert.Equal(t, 200, *resp.StatusCode)

	assert.Equal(t, map[string]string{"Authorization": Sentinel, "Accept": "application/json"}, got.Headers)
	assert.JSONEq(t, `{"password":"***","user":{"name":"ada"}}`, string(got.Body))
	assert.Equal(t, map[string]any{"id": Sentinel}, got.Variables)
	assert.Equal(t, `query GetUser { user(id: "***") { name } }`, *got.Query)

	assert.Equal(t, entry.Timestamp, got.Timestamp)
	assert.Equal(t, entry.Duration, got.Duration)
	assert.Equal(t, entry.RequestID, got.RequestID)
	assert.Equal(t, entry.OperationName, got.OperationName)
}

func TestMask_Sensitive(t *testing.T) {
	entry := newTestEntry(model.Failure{Method: "GET", URL: "https://h/p?a=1", Message: "timeout"})
	p := privacy.NewPolicy(privacy.LevelSensitive, privacy.WithExemptHeaders("accept"))

	got := Mask(entry, p)

	f, ok := got.Kind.(model.Failure)
	require.True(t, ok)
	assert.Equal(t, "https://h/p", f.URL)
	assert.Equal(t, "timeout", f.Message)
	assert.Equal(t, "GET", f.Method)
	for _, v := range got.Headers {
		assert.Equal(t, Sentinel, v)
	}
	assert.Nil(t, got.Body)
	assert.Nil(t, got.Variables)
	assert.Nil(t, got.Query)
	assert.Equal(t, "GetUser", *got.OperationName, "operation name is never masked")
	assert.True(t, got.IsGraphQL())
}

func TestMask_SensitiveIgnoresLiteralFlag(t *testing.T) {
	entry := newTestEntry(model.Request{Method: "GET", URL: "https://h/p"})

	got := Mask(entry, privacy.NewPolicy(privacy.LevelSensitive, privacy.WithQueryLiteralMasking(false)))

	assert.Nil(t, got.Query)
}

func TestMask_AbsentFieldsStayAbsent(t *testing.T) {
	entry := model.TraceEntry{Kind: model.Request{Method: "GET", URL: "https://h/"}, RequestID: "r"}

	for _, level := range []privacy.Level{privacy.LevelNone, privacy.LevelPrivate, privacy.LevelSensitive} {
		got := Mask(entry, privacy.NewPolicy(level))
		assert.Nil(t, got.Headers, level.String())
		assert.Nil(t, got.Body, level.String())
		assert.Nil(t, got.Variables, level.String())
		assert.Nil(t, got.Query, level.String())
		assert.False(t, got.IsGraphQL(), level.String())
	}
}

func TestMask_NilKind(t *testing.T) {
	got := Mask(model.TraceEntry{RequestID: "r"}, privacy.NewPolicy(privacy.LevelSensitive))
	assert.Nil(t, got.Kind)
	assert.Equal(t, "r", got.RequestID)
}

func TestMask_DoesNotMutateInput(t *testing.T) {
	entry := newTestEntry(model.Request{Method: "GET", URL: "https://h/p?a=1"})
	query := *entry.Query

	_ = Mask(entry, privacy.NewPolicy(privacy.LevelPrivate))

	assert.Equal(t, "Bearer token", entry.Headers["Authorization"])
	assert.Equal(t, `{"password":"hunter2","user":{"name":"ada"}}`, string(entry.Body))
	assert.Equal(t, "42", entry.Variables["id"])
	assert.Equal(t, query, *entry.Query)
	assert.Equal(t, "https://h/p?a=1", entry.Kind.(model.Request).URL)
}

func TestMask_ConcurrentCallers(t *testing.T) {
	p := privacy.NewPolicy(privacy.LevelPrivate, privacy.WithExemptHeaders("accept"))
	var wg sync.WaitGroup
	for i := 0; i < 16; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			entry := newTestEntry(model.Request{Method: "GET", URL: "https://h/p?a=1"})
			got := Mask(entry, p)
			assert.Equal(t, Sentinel, got.Headers["Authorization"])
		}()
	}
	wg.Wait()
}
