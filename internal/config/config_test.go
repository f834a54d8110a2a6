package config

import (
	"testing"
	"time"

	"github.com/stretchr/testify/require"
)

func TestLoadRequiresJWTSecret(t *testing.T) {
	t.Setenv("GEMA_JWT_SECRET", "")

	_, err := Load()
	require.Error(t, err)
}

func TestLoadDefaults(t *testing.T) {
	t.Setenv("GEMA_JWT_SECRET", "secret")

	cfg, err := Load()
	require.NoError(t, err)
	require.Equal(t, ":8080", cfg.HTTPAddress())
	require.Equal(t, 5*time.Minute, cfg.QuizCacheTTL)
	require.Equal(t, 30*time.Second, cfg.SubmitGrace)
	require.Zero(t, cfg.AttemptSweepInterval)
	require.False(t, cfg.UsesCloudinary())
	require.Equal(t, 15, cfg.UploadMaxSizeMB)
}

func TestLoadRejectsInvalidDuration(t *testing.T) {
	t.Setenv("GEMA_JWT_SECRET", "secret")
	t.Setenv("GEMA_QUIZ_SUBMIT_GRACE", "soon")

	_, err := Load()
	require.Error(t, err)
}

func TestLoadReadsPoolAndOrigins(t *testing.T) {
	t.Setenv("GEMA_JWT_SECRET", "secret")
	t.Setenv("GEMA_DATABASE_MAX_OPEN_CONNS", "40")
	t.Setenv("GEMA_CORS_ALLOW_ORIGINS", "https://gema.sch.id, ,https://admin.gema.sch.id")

	cfg, err := Load()
	require.NoError(t, err)
	require.Equal(t, 40, cfg.DatabaseMaxOpenConns)
	require.Equal(t, 5, cfg.DatabaseMaxIdleConns)
	require.Equal(t, 30*time.Minute, cfg.DatabaseConnMaxLifetime)
	require.Equal(t, []string{"https://gema.sch.id", "https://admin.gema.sch.id"}, cfg.CORSAllowOrigins)
}
