package source_test

import (
	"context"
	"errors"
	"testing"
	"time"

	"trendpulse/internal/domain/entity"
	srcUC "trendpulse/internal/usecase/source"
)

// stubRepo is a very-light in-memory SourceRepository stub.
type stubRepo struct {
	data   map[int64]*entity.Source
	nextID int64
	err    error
}

func newStub() *stubRepo {
	return &stubRepo{data: map[int64]*entity.Source{}, nextID: 1}
}

func (s *stubRepo) Get(_ context.Context, id int64) (*entity.Source, error) {
	return s.data[id], s.err
}
func (s *stubRepo) List(_ context.Context) ([]*entity.Source, error) {
	var out []*entity.Source
	for _, v := range s.data {
		out = append(out, v)
	}
	return out, s.err
}
func (s *stubRepo) ListActive(_ context.Context) ([]*entity.Source, error) {
	var out []*entity.Source
	for _, v := range s.data {
		if v.ErrorRate < 1.0 {
			out = append(out, v)
		}
	}
	return out, s.err
}
func (s *stubRepo) Create(_ context.Context, src *entity.Source) error {
	if s.err != nil {
		return s.err
	}
	src.ID = s.nextID
	s.nextID++
	s.data[src.ID] = src
	return nil
}
func (s *stubRepo) Update(_ context.Context, src *entity.Source) error {
	if s.err != nil {
		return s.err
	}
	s.data[src.ID] = src
	return nil
}
func (s *stubRepo) Delete(_ context.Context, id int64) error {
	if s.err != nil {
		return s.err
	}
	delete(s.data, id)
	return nil
}
func (s *stubRepo) TouchFetchedAt(_ context.Context, _ int64, _ time.Time) error {
	return nil
}
func (s *stubRepo) RecordFetchError(_ context.Context, _ int64, _ float64) error {
	return nil
}

func TestService_Create_validation(t *testing.T) {
	svc := srcUC.Service{Repo: newStub()}

	err := svc.Create(context.Background(), srcUC.CreateInput{})
	if err == nil {
		t.Fatalf("want validation error, got nil")
	}
}

func TestService_Create_success(t *testing.T) {
	stub := newStub()
	svc := srcUC.Service{Repo: stub}

	in := srcUC.CreateInput{Name: "Qiita", URL: "https://qiita.com/feed"}
	if err := svc.Create(context.Background(), in); err != nil {
		t.Fatalf("Create err=%v", err)
	}
	if len(stub.data) != 1 {
		t.Fatalf("want 1 source, got %d", len(stub.data))
	}
	if stub.data[1].Kind != entity.SourceKindRSS {
		t.Errorf("want default kind rss, got %q", stub.data[1].Kind)
	}
}

func TestService_Update_notFound(t *testing.T) {
	svc := srcUC.Service{Repo: newStub()}

	err := svc.Update(context.Background(), srcUC.UpdateInput{ID: 99})
	if !errors.Is(err, srcUC.ErrSourceNotFound) {
		t.Fatalf("want ErrSourceNotFound, got %v", err)
	}
}

func TestService_Update_ok(t *testing.T) {
	stub := newStub()
	stub.data[1] = &entity.Source{ID: 1, Name: "Qiita", URL: "https://qiita.com/feed", Kind: entity.SourceKindRSS, TrustTier: entity.TrustTierB, Scope: entity.SourceScopeNational}
	svc := srcUC.Service{Repo: stub}

	err := svc.Update(context.Background(), srcUC.UpdateInput{ID: 1, Name: "Qiita Go"})
	if err != nil {
		t.Fatalf("Update err=%v", err)
	}
	got := stub.data[1]
	if got.Name != "Qiita Go" {
		t.Fatalf("update failed: %#v", got)
	}
}

func TestService_Update_leavesUnsetFieldsUnchanged(t *testing.T) {
	stub := newStub()
	stub.data[1] = &entity.Source{
		ID: 1, Name: "Test", URL: "https://example.com/feed",
		Kind: entity.SourceKindRSS, TrustTier: entity.TrustTierB, Scope: entity.SourceScopeNational,
	}
	svc := srcUC.Service{Repo: stub}

	if err := svc.Update(context.Background(), srcUC.UpdateInput{ID: 1, URL: "https://example.com/new-feed"}); err != nil {
		t.Fatalf("Update err=%v", err)
	}
	got := stub.data[1]
	if got.URL != "https://example.com/new-feed" {
		t.Errorf("URL not updated, got %s", got.URL)
	}
	if got.Name != "Test" {
		t.Errorf("Name should not change, got %s", got.Name)
	}
}

func TestService_Update_invalidURL(t *testing.T) {
	stub := newStub()
	stub.data[1] = &entity.Source{ID: 1, Name: "Test", URL: "https://example.com/feed", Kind: entity.SourceKindRSS, TrustTier: entity.TrustTierB, Scope: entity.SourceScopeNational}
	svc := srcUC.Service{Repo: stub}

	err := svc.Update(context.Background(), srcUC.UpdateInput{ID: 1, URL: "not-a-url"})
	var valErr *entity.ValidationError
	if !errors.As(err, &valErr) {
		t.Fatalf("want ValidationError, got %v", err)
	}
}

func TestService_Delete_validation(t *testing.T) {
	svc := srcUC.Service{Repo: newStub()}
	if err := svc.Delete(context.Background(), 0); err == nil {
		t.Fatalf("want validation error, got nil")
	}
}

func TestService_List(t *testing.T) {
	tests := []struct {
		name      string
		setupRepo func(*stubRepo)
		wantCount int
		wantErr   bool
	}{
		{
			name:      "empty list",
			setupRepo: func(s *stubRepo) {},
			wantCount: 0,
		},
		{
			name: "multiple sources",
			setupRepo: func(s *stubRepo) {
				s.data[1] = &entity.Source{ID: 1, Name: "Qiita", URL: "https://qiita.com/feed"}
				s.data[2] = &entity.Source{ID: 2, Name: "Zenn", URL: "https://zenn.dev/feed"}
			},
			wantCount: 2,
		},
		{
			name:      "repository error",
			setupRepo: func(s *stubRepo) { s.err = errors.New("database error") },
			wantErr:   true,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			stub := newStub()
			tt.setupRepo(stub)
			svc := srcUC.Service{Repo: stub}

			sources, err := svc.List(context.Background())
			if (err != nil) != tt.wantErr {
				t.Fatalf("List() error = %v, wantErr %v", err, tt.wantErr)
			}
			if !tt.wantErr && len(sources) != tt.wantCount {
				t.Errorf("List() got %d sources, want %d", len(sources), tt.wantCount)
			}
		})
	}
}

func TestService_ListActive(t *testing.T) {
	stub := newStub()
	stub.data[1] = &entity.Source{ID: 1, Name: "Healthy", URL: "https://a.example/feed", ErrorRate: 0.1}
	stub.data[2] = &entity.Source{ID: 2, Name: "Dead", URL: "https://b.example/feed", ErrorRate: 1.0}
	svc := srcUC.Service{Repo: stub}

	active, err := svc.ListActive(context.Background())
	if err != nil {
		t.Fatalf("ListActive err=%v", err)
	}
	if len(active) != 1 || active[0].Name != "Healthy" {
		t.Fatalf("want only Healthy source active, got %#v", active)
	}
}

func TestService_Create_detailedValidation(t *testing.T) {
	tests := []struct {
		name    string
		input   srcUC.CreateInput
		wantErr bool
	}{
		{
			name:    "empty name",
			input:   srcUC.CreateInput{URL: "https://example.com/feed"},
			wantErr: true,
		},
		{
			name:    "empty url",
			input:   srcUC.CreateInput{Name: "Test Source"},
			wantErr: true,
		},
		{
			name:    "invalid url format",
			input:   srcUC.CreateInput{Name: "Test Source", URL: "not-a-url"},
			wantErr: true,
		},
		{
			name:    "valid input",
			input:   srcUC.CreateInput{Name: "Test Source", URL: "https://example.com/feed"},
			wantErr: false,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			stub := newStub()
			svc := srcUC.Service{Repo: stub}

			err := svc.Create(context.Background(), tt.input)
			if (err != nil) != tt.wantErr {
				t.Errorf("Create() error = %v, wantErr %v", err, tt.wantErr)
			}
		})
	}
}

func TestService_Update_idValidation(t *testing.T) {
	tests := []struct {
		name string
		id   int64
	}{
		{"zero id", 0},
		{"negative id", -1},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			svc := srcUC.Service{Repo: newStub()}
			err := svc.Update(context.Background(), srcUC.UpdateInput{ID: tt.id})
			var valErr *entity.ValidationError
			if !errors.As(err, &valErr) {
				t.Fatalf("want ValidationError, got %v", err)
			}
		})
	}
}

func TestService_Delete_success(t *testing.T) {
	tests := []struct {
		name      string
		id        int64
		setupRepo func(*stubRepo)
		wantErr   bool
	}{
		{
			name: "successful deletion",
			id:   1,
			setupRepo: func(s *stubRepo) {
				s.data[1] = &entity.Source{ID: 1, Name: "Test", URL: "https://example.com/feed"}
			},
		},
		{
			name:      "repository error",
			id:        1,
			setupRepo: func(s *stubRepo) { s.err = errors.New("delete failed") },
			wantErr:   true,
		},
		{
			name:      "negative id",
			id:        -1,
			setupRepo: func(s *stubRepo) {},
			wantErr:   true,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			stub := newStub()
			tt.setupRepo(stub)
			svc := srcUC.Service{Repo: stub}

			err := svc.Delete(context.Background(), tt.id)
			if (err != nil) != tt.wantErr {
				t.Fatalf("Delete() error = %v, wantErr %v", err, tt.wantErr)
			}
			if !tt.wantErr {
				if _, exists := stub.data[tt.id]; exists {
					t.Errorf("Delete() source still exists with ID %d", tt.id)
				}
			}
		})
	}
}
