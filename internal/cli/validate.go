package cli

import (
	"context"
	"errors"
	"os"
	"path/filepath"

	"github.com/rs/zerolog/log"

	"github.com/fpang/transcript-insight/internal/auth"
)

// EnsureDataDir creates the directory if needed and returns its absolute
// path. Exits fatally when the path exists but is not a directory.
func EnsureDataDir(dirPath string) string {
	info, err := os.Stat(dirPath)
	switch {
	case err == nil && !info.IsDir():
		log.Fatal().Str("path", dirPath).Msg("Path is not a directory")
	case errors.Is(err, os.ErrNotExist):
		if err := os.MkdirAll(dirPath, 0o755); err != nil {
			log.Fatal().Err(err).Str("path", dirPath).Msg("Failed to create data directory")
		}
	case err != nil:
		log.Fatal().Err(err).Str("path", dirPath).Msg("Failed to access directory")
	}

	if absPath, err := filepath.Abs(dirPath); err == nil {
		dirPath = absPath
	}
	return dirPath
}

// RequireAPIKey resolves a credential a remote stage cannot run without.
// Exits fatally when it is missing.
func RequireAPIKey(ctx context.Context, cred auth.Credential, params auth.ParameterGetter) string {
	key, err := auth.GetAPIKey(ctx, cred, params)
	if err != nil {
		HandleCredentialError(err)
	}
	return key
}

// HandleCredentialError exits with messaging matched to the failure.
func HandleCredentialError(err error) {
	var credErr *auth.CredentialError
	if errors.As(err, &credErr) {
		log.Fatal().Err(err).Str("credential", credErr.Credential.Name).Msg("No API key configured")
	}

	var remote *auth.RemoteError
	if errors.As(err, &remote) {
		switch remote.Type {
		case auth.ErrTypeInvalidKey:
			log.Fatal().Err(err).Msg("Invalid API key. Please check your API key and try again")
		case auth.ErrTypeNetworkError:
			log.Fatal().Err(err).Msg("Network error. Please check your internet connection")
		case auth.ErrTypeQuotaExceeded:
			log.Fatal().Err(err).Msg("API quota exceeded. Please try again later or check your usage limits")
		}
	}
	log.Fatal().Err(err).Msg("API key validation failed")
	os.Exit(1)
}
