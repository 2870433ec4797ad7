// Package auth resolves API credentials and classifies remote failures.
package auth

import (
	"context"
	"fmt"
	"os"
	"strings"
	"time"

	"github.com/aws/aws-sdk-go-v2/aws"
	awsconfig "github.com/aws/aws-sdk-go-v2/config"
	"github.com/aws/aws-sdk-go-v2/service/ssm"
	"github.com/rs/zerolog/log"
)

// Credential names one API key and where it may be found.
type Credential struct {
	Name string
	// EnvVar holds the key itself.
	EnvVar string
	// ParamEnvVar names the SSM parameter holding the key.
	ParamEnvVar string
}

var (
	// Gemini is the key for extraction, aggregation and Gemini transcription.
	Gemini = Credential{Name: "Gemini", EnvVar: "GEMINI_API_KEY", ParamEnvVar: "INSIGHT_SSM_GEMINI_KEY"}
	// OpenAI is the key for Whisper transcription.
	OpenAI = Credential{Name: "OpenAI", EnvVar: "OPENAI_API_KEY", ParamEnvVar: "INSIGHT_SSM_OPENAI_KEY"}
)

// CredentialError reports a key that could not be resolved.
type CredentialError struct {
	Credential Credential
	Err        error
}

func (e *CredentialError) Error() string {
	msg := fmt.Sprintf("%s API key not found: set %s", e.Credential.Name, e.Credential.EnvVar)
	if e.Credential.ParamEnvVar != "" {
		msg += " or " + e.Credential.ParamEnvVar
	}
	if e.Err != nil {
		msg += ": " + e.Err.Error()
	}
	return msg
}

func (e *CredentialError) Unwrap() error { return e.Err }

// ParameterGetter is the subset of the SSM client used for key lookup.
type ParameterGetter interface {
	GetParameter(ctx context.Context, params *ssm.GetParameterInput, optFns ...func(*ssm.Options)) (*ssm.GetParameterOutput, error)
}

// newParameterGetter builds an SSM client from the default AWS config.
var newParameterGetter = func(ctx context.Context) (ParameterGetter, error) {
	cfg, err := awsconfig.LoadDefaultConfig(ctx)
	if err != nil {
		return nil, fmt.Errorf("failed to load AWS config: %w", err)
	}
	return ssm.NewFromConfig(cfg), nil
}

// GetAPIKey retrieves a key from available sources.
// Priority order:
//  1. the credential's environment variable
//  2. the SSM parameter named by ParamEnvVar, read with decryption
//
// params may be nil, in which case an SSM client is created on demand.
func GetAPIKey(ctx context.Context, cred Credential, params ParameterGetter) (string, error) {
	if key := strings.TrimSpace(os.Getenv(cred.EnvVar)); key != "" {
		log.Debug().Str("credential", cred.Name).Msg("Using API key from environment variable")
		return key, nil
	}

	paramName := os.Getenv(cred.ParamEnvVar)
	if cred.ParamEnvVar == "" || paramName == "" {
		return "", &CredentialError{Credential: cred}
	}

	if params == nil {
		var err error
		params, err = newParameterGetter(ctx)
		if err != nil {
			return "", &CredentialError{Credential: cred, Err: err}
		}
	}

	start := time.Now()
	out, err := params.GetParameter(ctx, &ssm.GetParameterInput{
		Name:           aws.String(paramName),
		WithDecryption: aws.Bool(true),
	})
	if err != nil {
		return "", &CredentialError{Credential: cred, Err: fmt.Errorf("read SSM parameter %s: %w", paramName, err)}
	}
	if out.Parameter == nil || aws.ToString(out.Parameter.Value) == "" {
		return "", &CredentialError{Credential: cred, Err: fmt.Errorf("SSM parameter %s is empty", paramName)}
	}
	log.Debug().
		Str("credential", cred.Name).
		Str("param", paramName).
		Dur("elapsed", time.Since(start)).
		Msg("API key loaded from SSM")
	return strings.TrimSpace(aws.ToString(out.Parameter.Value)), nil
}
