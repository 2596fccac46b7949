package service

import (
	"context"
	"testing"

	"go.uber.org/zap"

	"github.com/hyperjump/shikiri/internal/apperr"
	"github.com/hyperjump/shikiri/internal/match"
	"github.com/hyperjump/shikiri/internal/models"
)

const noInfo = "Aucune information disponible pour ce client"

type stubResolver struct {
	tenants map[string]models.TenantID
}

func (r *stubResolver) Resolve(credential string) (models.TenantID, error) {
	if credential == "" {
		return "", apperr.New(apperr.EUnauthorized, "missing API key")
	}
	if t, ok := r.tenants[credential]; ok {
		return t, nil
	}
	return "", apperr.New(apperr.EUnauthorized, "invalid API key")
}

// countingLoader records how many times storage was touched.
type countingLoader struct {
	corpora map[models.TenantID][]models.Document
	calls   int
}

func (l *countingLoader) Load(_ context.Context, id models.TenantID) ([]models.Document, error) {
	l.calls++
	docs, ok := l.corpora[id]
	if !ok {
		return nil, apperr.New(apperr.EUnavailable, "tenant corpus unavailable")
	}
	return docs, nil
}

// fixedMatcher returns a canned result.
type fixedMatcher struct {
	result match.Result
}

func (m *fixedMatcher) Search(_ []models.Document, _ string) (match.Result, error) {
	return m.result, nil
}

func newTestService(t *testing.T, loader *countingLoader, matcher Matcher) *Service {
	t.Helper()
	resolver := &stubResolver{tenants: map[string]models.TenantID{
		"tenantA_key": "tenantA",
		"tenantB_key": "tenantB",
	}}
	return NewService(resolver, loader, matcher, noInfo, zap.NewNop())
}

func twoTenantLoader() *countingLoader {
	return &countingLoader{corpora: map[models.TenantID][]models.Document{
		"tenantA": {{Source: "docA1.txt", Content: "Exclusion : Travaux en hauteur au-delà de 3 mètres."}},
		"tenantB": {{Source: "docB1.txt", Content: "Exclusion : Sous-traitance non déclarée."}},
	}}
}

func TestHandle_success(t *testing.T) {
	loader := twoTenantLoader()
	svc := newTestService(t, loader, match.NewEngine(0))

	resp, err := svc.Handle(context.Background(), "tenantA_key", "RC Pro exclusion")
	if err != nil {
		t.Fatal(err)
	}
	if resp.Answer == noInfo {
		t.Errorf("expected an answer, got the no-match message")
	}
	if len(resp.Sources) != 1 || resp.Sources[0] != "docA1.txt" {
		t.Errorf("sources: got %v", resp.Sources)
	}
	if resp.RequestID == "" {
		t.Error("response should carry a request id")
	}
}

func TestHandle_noMatchIsSuccessWithSentinel(t *testing.T) {
	loader := twoTenantLoader()
	svc := newTestService(t, loader, match.NewEngine(0))

	// Content only in tenant B's corpus, queried with tenant A's credential.
	resp, err := svc.Handle(context.Background(), "tenantA_key", "sous-traitance")
	if err != nil {
		t.Fatal(err)
	}
	if resp.Answer != noInfo {
		t.Errorf("answer: got %q, want the no-match message", resp.Answer)
	}
	if resp.Sources == nil || len(resp.Sources) != 0 {
		t.Errorf("sources must be empty (not nil) on no-match, got %#v", resp.Sources)
	}
}

func TestHandle_authFailsBeforeStorage(t *testing.T) {
	loader := twoTenantLoader()
	svc := newTestService(t, loader, match.NewEngine(0))

	for _, cred := range []string{"", "forged_key"} {
		_, err := svc.Handle(context.Background(), cred, "RC Pro exclusion")
		if apperr.ErrorCode(err) != apperr.EUnauthorized {
			t.Errorf("Handle(%q): got code %q, want unauthorized", cred, apperr.ErrorCode(err))
		}
	}
	if loader.calls != 0 {
		t.Errorf("loader was called %d times for rejected credentials; want 0", loader.calls)
	}
}

func TestHandle_emptyQueryFailsBeforeStorage(t *testing.T) {
	loader := twoTenantLoader()
	svc := newTestService(t, loader, match.NewEngine(0))

	_, err := svc.Handle(context.Background(), "tenantA_key", "   ")
	if apperr.ErrorCode(err) != apperr.EInvalid {
		t.Errorf("got code %q, want invalid", apperr.ErrorCode(err))
	}
	if loader.calls != 0 {
		t.Errorf("loader was called %d times for an empty query; want 0", loader.calls)
	}
}

func TestHandle_cancelledContextStopsPipeline(t *testing.T) {
	loader := twoTenantLoader()
	svc := newTestService(t, loader, match.NewEngine(0))

	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	if _, err := svc.Handle(ctx, "tenantA_key", "RC Pro exclusion"); err == nil {
		t.Error("cancelled context should abort the request")
	}
}

func TestHandle_sourceOwnershipViolation(t *testing.T) {
	loader := twoTenantLoader()
	// A buggy matcher that claims a source outside the loaded corpus.
	matcher := &fixedMatcher{result: match.Result{
		Matched: true,
		Answer:  "leaked",
		Sources: []string{"docB1.txt_from_another_tenant"},
	}}
	svc := newTestService(t, loader, matcher)

	_, err := svc.Handle(context.Background(), "tenantA_key", "anything")
	if apperr.ErrorCode(err) != apperr.EInternal {
		t.Errorf("got code %q, want internal", apperr.ErrorCode(err))
	}
}

func TestHandle_loadFailurePropagates(t *testing.T) {
	loader := &countingLoader{corpora: map[models.TenantID][]models.Document{}}
	svc := newTestService(t, loader, match.NewEngine(0))

	_, err := svc.Handle(context.Background(), "tenantA_key", "sinistre")
	if apperr.ErrorCode(err) != apperr.EUnavailable {
		t.Errorf("got code %q, want unavailable", apperr.ErrorCode(err))
	}
}
