package config

import (
	"context"
	"os"
	"time"

	"github.com/m-mizutani/ctxlog"
	"github.com/m-mizutani/goerr/v2"
	"github.com/m-mizutani/reltrace/pkg/domain/interfaces"
	githubinfra "github.com/m-mizutani/reltrace/pkg/infra/github"
	"github.com/urfave/cli/v3"
)

// GitHub holds GitHub API configuration. A token takes precedence over App credentials.
type GitHub struct {
	Token          string `masq:"secret"`
	AppID          int64
	InstallationID int64
	PrivateKey     string `masq:"secret"`
	PrivateKeyFile string
	BaseURL        string
	Timeout        time.Duration
}

// Flags returns CLI flags for GitHub configuration
func (c *GitHub) Flags() []cli.Flag {
	return []cli.Flag{
		&cli.StringFlag{
			Name:        "github-token",
			Usage:       "GitHub personal access token",
			Destination: &c.Token,
			Sources:     cli.EnvVars("RELTRACE_GITHUB_TOKEN", "GITHUB_TOKEN"),
		},
		&cli.Int64Flag{
			Name:        "github-app-id",
			Usage:       "GitHub App ID",
			Destination: &c.AppID,
			Sources:     cli.EnvVars("RELTRACE_GITHUB_APP_ID"),
		},
		&cli.Int64Flag{
			Name:        "github-installation-id",
			Usage:       "GitHub App installation ID",
			Destination: &c.InstallationID,
			Sources:     cli.EnvVars("RELTRACE_GITHUB_INSTALLATION_ID"),
		},
		&cli.StringFlag{
			Name:        "github-private-key",
			Usage:       "GitHub App private key (PEM)",
			Destination: &c.PrivateKey,
			Sources:     cli.EnvVars("RELTRACE_GITHUB_PRIVATE_KEY"),
		},
		&cli.StringFlag{
			Name:        "github-private-key-file",
			Usage:       "Path to the GitHub App private key",
			Destination: &c.PrivateKeyFile,
			Sources:     cli.EnvVars("RELTRACE_GITHUB_PRIVATE_KEY_FILE"),
		},
		&cli.StringFlag{
			Name:        "github-api-url",
			Usage:       "GitHub API base URL (GitHub Enterprise)",
			Destination: &c.BaseURL,
			Sources:     cli.EnvVars("RELTRACE_GITHUB_API_URL"),
		},
		&cli.DurationFlag{
			Name:        "github-timeout",
			Usage:       "Timeout of each GitHub API call",
			Value:       30 * time.Second,
			Destination: &c.Timeout,
			Sources:     cli.EnvVars("RELTRACE_GITHUB_TIMEOUT"),
		},
	}
}

// NewClient creates the GitHub API client from the configured credentials
func (c *GitHub) NewClient(ctx context.Context) (interfaces.RepositoryAPI, error) {
	opts := []githubinfra.Option{githubinfra.WithTimeout(c.Timeout)}
	if c.BaseURL != "" {
		opts = append(opts, githubinfra.WithBaseURL(c.BaseURL))
	}

	if c.Token != "" {
		return githubinfra.NewClient(c.Token, opts...)
	}

	if c.AppID != 0 || c.InstallationID != 0 {
		if c.AppID == 0 || c.InstallationID == 0 {
			return nil, goerr.New("both GitHub App ID and installation ID are required",
				goerr.V("app_id", c.AppID),
				goerr.V("installation_id", c.InstallationID),
			)
		}
		key, err := c.privateKey()
		if err != nil {
			return nil, err
		}
		return githubinfra.NewAppClient(c.AppID, c.InstallationID, key, opts...)
	}

	ctxlog.From(ctx).Warn("No GitHub credentials configured, API rate limits are low")
	return githubinfra.NewClient("", opts...)
}

func (c *GitHub) privateKey() ([]byte, error) {
	if c.PrivateKey != "" {
		return []byte(c.PrivateKey), nil
	}
	if c.PrivateKeyFile == "" {
		return nil, goerr.New("GitHub App private key is required")
	}
	key, err := os.ReadFile(c.PrivateKeyFile)
	if err != nil {
		return nil, goerr.Wrap(err, "failed to read GitHub App private key", goerr.V("path", c.PrivateKeyFile))
	}
	return key, nil
}
