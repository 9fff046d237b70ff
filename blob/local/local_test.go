package local_test

import (
	"context"
	"os"
	"path/filepath"
	"testing"

	"github.com/kbukum/scalestore/blob"
	"github.com/kbukum/scalestore/blob/local"
	"github.com/kbukum/scalestore/component"
	"github.com/kbukum/scalestore/errors"
	"github.com/kbukum/scalestore/logger"
)

func writeFile(t *testing.T, base, rel, content string) {
	t.Helper()
	full := filepath.Join(base, filepath.FromSlash(rel))
	if err := os.MkdirAll(filepath.Dir(full), 0o750); err != nil {
		t.Fatal(err)
	}
	if err := os.WriteFile(full, []byte(content), 0o600); err != nil {
		t.Fatal(err)
	}
}

func TestLocalStorage(t *testing.T) {
	base := t.TempDir()
	writeFile(t, base, "settings/defaults.json", `{"cooldown":"300"}`)
	writeFile(t, base, "settings/2024/old.json", `{}`)
	writeFile(t, base, "readme.txt", "hi")

	s, err := local.NewStorage(base)
	if err != nil {
		t.Fatalf("NewStorage failed: %v", err)
	}
	ctx := context.Background()

	t.Run("exists", func(t *testing.T) {
		tests := []struct {
			path string
			want bool
		}{
			{"settings/defaults.json", true},
			{"settings", false},
			{"missing.json", false},
			{"../../etc/passwd", false},
		}
		for _, tc := range tests {
			got, err := s.Exists(ctx, tc.path)
			if err != nil || got != tc.want {
				t.Errorf("%s: expected %v, got %v err=%v", tc.path, tc.want, got, err)
			}
		}
	})

	t.Run("read string", func(t *testing.T) {
		got, err := blob.ReadString(ctx, s, "settings/defaults.json")
		if err != nil || got != `{"cooldown":"300"}` {
			t.Errorf("unexpected content %q err=%v", got, err)
		}
		if _, err := s.Download(ctx, "nope"); !errors.HasCode(err, errors.ErrCodeNotFound) {
			t.Errorf("expected NOT_FOUND, got %v", err)
		}
	})

	t.Run("list", func(t *testing.T) {
		all, err := s.List(ctx, "settings/")
		if err != nil || len(all) != 2 {
			t.Fatalf("expected 2 objects, got %+v err=%v", all, err)
		}
		if all[0].Path != "settings/2024/old.json" || all[1].ContentType != "application/json" {
			t.Errorf("unexpected listing %+v", all)
		}

		dir, err := blob.ListDir(ctx, s, "settings")
		if err != nil || len(dir) != 1 || dir[0].Path != "settings/defaults.json" {
			t.Errorf("expected only the direct child, got %+v err=%v", dir, err)
		}
	})
}

func TestFactoryAndComponent(t *testing.T) {
	base := t.TempDir()
	writeFile(t, base, "a.txt", "a")
	ctx := context.Background()

	if _, err := blob.New(ctx, blob.Config{Provider: blob.ProviderLocal, BasePath: base}, logger.NewNop()); err != nil {
		t.Fatalf("New failed: %v", err)
	}

	disabled := blob.NewComponent(blob.Config{}, logger.NewNop())
	if err := disabled.Start(ctx); err != nil || disabled.Storage() != nil {
		t.Errorf("expected disabled component to start empty, err=%v", err)
	}
	if h := disabled.Health(ctx); h.Status != component.StatusHealthy || h.Message != "disabled" {
		t.Errorf("unexpected health %+v", h)
	}

	c := blob.NewComponent(blob.Config{Enabled: true, BasePath: base}, logger.NewNop())
	if err := c.Start(ctx); err != nil {
		t.Fatalf("Start failed: %v", err)
	}
	if c.Initialized() {
		t.Error("expected the provider to stay closed until first use")
	}
	if ok, _ := c.Storage().Exists(ctx, "a.txt"); !ok {
		t.Error("expected a.txt through the component")
	}
	if !c.Initialized() {
		t.Error("expected first use to open the provider")
	}
	if h := c.Health(ctx); h.Status != component.StatusHealthy {
		t.Errorf("expected healthy, got %+v", h)
	}
	if d := c.Describe(); d.Type != "blob" {
		t.Errorf("unexpected description %+v", d)
	}
	_ = c.Stop(ctx)
	if c.Initialized() {
		t.Error("expected provider released on Stop")
	}
	if ok, _ := c.Storage().Exists(ctx, "a.txt"); !ok || !c.Initialized() {
		t.Error("expected the provider to reopen after Stop")
	}
}

func TestComponentLazyOpen(t *testing.T) {
	ctx := context.Background()
	base := t.TempDir()
	writeFile(t, base, "a.txt", "a")
	notADir := filepath.Join(base, "a.txt")

	tests := []struct {
		name       string
		cfg        blob.Config
		use        func(s blob.Storage) error
		wantCode   errors.ErrorCode
		wantHealth component.HealthStatus
		wantOpen   bool
	}{
		{
			name:       "download opens provider",
			cfg:        blob.Config{Enabled: true, BasePath: base},
			use:        func(s blob.Storage) error { _, err := blob.ReadString(ctx, s, "a.txt"); return err },
			wantHealth: component.StatusHealthy,
			wantOpen:   true,
		},
		{
			name:       "list opens provider",
			cfg:        blob.Config{Enabled: true, BasePath: base},
			use:        func(s blob.Storage) error { _, err := s.List(ctx, ""); return err },
			wantHealth: component.StatusHealthy,
			wantOpen:   true,
		},
		{
			name:       "open failure surfaces on use",
			cfg:        blob.Config{Enabled: true, BasePath: notADir},
			use:        func(s blob.Storage) error { _, err := s.Exists(ctx, "a.txt"); return err },
			wantCode:   errors.ErrCodeExternalService,
			wantHealth: component.StatusUnhealthy,
		},
	}
	for _, tc := range tests {
		t.Run(tc.name, func(t *testing.T) {
			c := blob.NewComponent(tc.cfg, logger.NewNop())
			if err := c.Start(ctx); err != nil {
				t.Fatalf("Start should not open the provider: %v", err)
			}
			err := tc.use(c.Storage())
			switch {
			case tc.wantCode == "" && err != nil:
				t.Fatalf("unexpected error %v", err)
			case tc.wantCode != "" && !errors.HasCode(err, tc.wantCode):
				t.Fatalf("expected %s, got %v", tc.wantCode, err)
			}
			if c.Initialized() != tc.wantOpen {
				t.Errorf("expected initialized=%v", tc.wantOpen)
			}
			if h := c.Health(ctx); h.Status != tc.wantHealth {
				t.Errorf("expected health %s, got %+v", tc.wantHealth, h)
			}
		})
	}
}
