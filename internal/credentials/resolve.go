// Package credentials resolves password references from the config file.
//
// A reference is one of:
//   - env:NAME      read environment variable NAME
//   - ssm:/path     read an AWS SSM Parameter Store value (decrypted)
//   - empty         the caller must prompt; Resolve returns ErrPromptRequired
package credentials

import (
	"context"
	"errors"
	"fmt"
	"os"
	"strings"

	"github.com/aws/aws-sdk-go/aws"
	"github.com/aws/aws-sdk-go/aws/request"
	"github.com/aws/aws-sdk-go/aws/session"
	"github.com/aws/aws-sdk-go/service/ssm"
	"go.uber.org/zap"

	"github.com/muurk/salusconnect/internal/logging"
)

// ErrPromptRequired is returned for an empty reference.
var ErrPromptRequired = errors.New("no password reference configured; prompt required")

// ParameterGetter is the subset of the SSM API used here. *ssm.SSM satisfies it.
type ParameterGetter interface {
	GetParameterWithContext(ctx aws.Context, input *ssm.GetParameterInput, opts ...request.Option) (*ssm.GetParameterOutput, error)
}

// Resolver turns references into secrets.
type Resolver struct {
	// LookupEnv defaults to os.LookupEnv
	LookupEnv func(string) (string, bool)

	// SSM is created from the default AWS session on first ssm: lookup when nil
	SSM ParameterGetter
}

// Resolve resolves ref with a default Resolver.
func Resolve(ctx context.Context, ref string) (string, error) {
	return (&Resolver{}).Resolve(ctx, ref)
}

// Resolve returns the secret named by ref.
func (r *Resolver) Resolve(ctx context.Context, ref string) (string, error) {
	ref = strings.TrimSpace(ref)

	switch {
	case ref == "":
		return "", ErrPromptRequired

	case strings.HasPrefix(ref, "env:"):
		name := strings.TrimPrefix(ref, "env:")
		if name == "" {
			return "", fmt.Errorf("invalid reference %q: missing variable name", ref)
		}
		lookup := r.LookupEnv
		if lookup == nil {
			lookup = os.LookupEnv
		}
		value, ok := lookup(name)
		if !ok || value == "" {
			return "", fmt.Errorf("environment variable %s is not set", name)
		}
		return value, nil

	case strings.HasPrefix(ref, "ssm:"):
		path := strings.TrimPrefix(ref, "ssm:")
		if path == "" {
			return "", fmt.Errorf("invalid reference %q: missing parameter path", ref)
		}
		return r.fromSSM(ctx, path)

	default:
		return "", fmt.Errorf("unsupported reference %q (use env:NAME or ssm:/path)", ref)
	}
}

func (r *Resolver) fromSSM(ctx context.Context, path string) (string, error) {
	if r.SSM == nil {
		sess, err := session.NewSession(aws.NewConfig())
		if err != nil {
			return "", fmt.Errorf("failed to create AWS session: %w", err)
		}
		r.SSM = ssm.New(sess)
	}

	logging.Debug("Resolving SSM parameter", zap.String("name", path))

	resp, err := r.SSM.GetParameterWithContext(ctx, &ssm.GetParameterInput{
		Name:           aws.String(path),
		WithDecryption: aws.Bool(true),
	})
	if err != nil {
		return "", fmt.Errorf("failed to read SSM parameter %s: %w", path, err)
	}
	if resp.Parameter == nil || aws.StringValue(resp.Parameter.Value) == "" {
		return "", fmt.Errorf("SSM parameter %s is empty", path)
	}

	return aws.StringValue(resp.Parameter.Value), nil
}
