package commands_test

import (
	"bytes"
	"encoding/json"
	"io"
	"net/http"
	"net/http/httptest"
	"os"
	"path/filepath"
	"sync/atomic"
	"testing"

	"github.com/fivetwenty-io/strapi-client/cmd/strapi/commands"
	"github.com/fivetwenty-io/strapi-client/internal/constants"
	"github.com/spf13/cobra"
	"github.com/spf13/viper"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"gopkg.in/yaml.v3"
)

const pageOne = `{
  "data": [
    {"id": 1, "attributes": {"title": "Shoes", "price": 30}},
    {"id": 2, "attributes": {"title": "Boots", "price": 80}}
  ],
  "meta": {"pagination": {"page": 1, "pageSize": 2, "pageCount": 2, "total": 3}}
}`

const pageTwo = `{
  "data": [
    {"id": 3, "attributes": {"title": "Socks", "price": 5}}
  ],
  "meta": {"pagination": {"page": 2, "pageSize": 2, "pageCount": 2, "total": 3}}
}`

// execute runs cmd with args against a clean viper state.
func execute(t *testing.T, cmd *cobra.Command, settings map[string]any, args ...string) (string, error) {
	t.Helper()

	viper.Reset()
	t.Cleanup(viper.Reset)

	for key, value := range settings {
		viper.Set(key, value)
	}

	var out bytes.Buffer

	cmd.SetOut(&out)
	cmd.SetErr(io.Discard)
	cmd.SetArgs(args)

	err := cmd.Execute()

	return out.String(), err
}

func newContentServer(t *testing.T, requests *atomic.Int32) *httptest.Server {
	t.Helper()

	server := httptest.NewServer(http.HandlerFunc(func(writer http.ResponseWriter, request *http.Request) {
		requests.Add(1)

		assert.Equal(t, "Bearer cli-token", request.Header.Get("Authorization"))

		switch {
		case request.URL.Path != "/api/products":
			writer.WriteHeader(http.StatusNotFound)
			_, _ = writer.Write([]byte(`{"data":null,"error":{"status":404,"name":"NotFoundError","message":"Not Found"}}`))

		case request.URL.Query().Get("pagination[page]") == "2":
			_, _ = writer.Write([]byte(pageTwo))

		default:
			_, _ = writer.Write([]byte(pageOne))
		}
	}))
	t.Cleanup(server.Close)

	return server
}

func TestGetCommand(t *testing.T) {
	var requests atomic.Int32

	server := newContentServer(t, &requests)
	settings := map[string]any{"url": server.URL, "token": "cli-token", "output": constants.FormatJSON}

	t.Run("prints normalized entries", func(t *testing.T) {
		out, err := execute(t, commands.NewGetCommand(), settings, "products", "--filter", "price:gt:10")
		require.NoError(t, err)

		var entries []map[string]any
		require.NoError(t, json.Unmarshal([]byte(out), &entries))
		require.Len(t, entries, 2)
		assert.Equal(t, "Shoes", entries[0]["title"])
		assert.InDelta(t, 80, entries[1]["price"], 0)
	})

	t.Run("prints envelope with meta", func(t *testing.T) {
		out, err := execute(t, commands.NewGetCommand(), settings, "products", "--meta")
		require.NoError(t, err)

		var envelope struct {
			Meta struct {
				Pagination struct {
					Total int `json:"total"`
				} `json:"pagination"`
			} `json:"meta"`
		}
		require.NoError(t, json.Unmarshal([]byte(out), &envelope))
		assert.Equal(t, 3, envelope.Meta.Pagination.Total)
	})

	t.Run("fetches every page", func(t *testing.T) {
		requests.Store(0)

		out, err := execute(t, commands.NewGetCommand(), settings, "products", "--all", "--page-size", "2")
		require.NoError(t, err)

		var entries []map[string]any
		require.NoError(t, json.Unmarshal([]byte(out), &entries))
		assert.Len(t, entries, 3)
		assert.Equal(t, int32(2), requests.Load())
	})

	t.Run("reports API errors", func(t *testing.T) {
		_, err := execute(t, commands.NewGetCommand(), settings, "missing")
		require.ErrorIs(t, err, constants.ErrRequestFailed)
		assert.Contains(t, err.Error(), "404 NotFoundError")
	})

	t.Run("rejects conflicting pagination", func(t *testing.T) {
		_, err := execute(t, commands.NewGetCommand(), settings, "products", "--all", "--page", "2")
		require.ErrorIs(t, err, constants.ErrConflictingFlags)
	})

	t.Run("requires a URL", func(t *testing.T) {
		_, err := execute(t, commands.NewGetCommand(), map[string]any{}, "products")
		require.ErrorIs(t, err, constants.ErrNoBaseURL)
	})

	t.Run("renders a table", func(t *testing.T) {
		tableSettings := map[string]any{"url": server.URL, "token": "cli-token", "output": constants.FormatTable}

		out, err := execute(t, commands.NewGetCommand(), tableSettings, "products")
		require.NoError(t, err)
		assert.Contains(t, out, "Shoes")
		assert.Contains(t, out, "Boots")
	})
}

func TestURLCommand(t *testing.T) {
	t.Run("relative without a configured URL", func(t *testing.T) {
		out, err := execute(t, commands.NewURLCommand(), map[string]any{}, "products", "--filter", "price:gt:10")
		require.NoError(t, err)
		assert.Equal(t, "products?filters[price][$gt]=10\n", out)
	})

	t.Run("joined to the configured URL", func(t *testing.T) {
		out, err := execute(t, commands.NewURLCommand(), map[string]any{"url": "cms.example.com"},
			"articles", "--populate-with", "author:name", "--sort", "title:desc")
		require.NoError(t, err)
		assert.Equal(t, "https://cms.example.com/api/articles?populate[author][fields][]=name&sort[0]=title:desc\n", out)
	})

	t.Run("users take no resource", func(t *testing.T) {
		_, err := execute(t, commands.NewURLCommand(), map[string]any{}, "products", "--users")
		require.Error(t, err)
	})
}

func TestConfigCommand(t *testing.T) {
	path := filepath.Join(t.TempDir(), "nested", "config.yml")

	t.Run("set writes the file", func(t *testing.T) {
		settings := map[string]any{"config": path}

		out, err := execute(t, commands.NewConfigCommand(), settings, "set", "url", "https://cms.example.com")
		require.NoError(t, err)
		assert.Equal(t, "Set url to https://cms.example.com\n", out)

		out, err = execute(t, commands.NewConfigCommand(), settings, "set", "token", "secret")
		require.NoError(t, err)
		assert.Equal(t, "Set token to ***\n", out)

		_, err = execute(t, commands.NewConfigCommand(), settings, "set", "cache.type", "nats")
		require.NoError(t, err)

		_, err = execute(t, commands.NewConfigCommand(), settings, "set", "revalidate", "5m")
		require.NoError(t, err)

		info, err := os.Stat(path)
		require.NoError(t, err)
		assert.Equal(t, os.FileMode(constants.ConfigFilePerm), info.Mode().Perm())

		data, err := os.ReadFile(path)
		require.NoError(t, err)

		var stored map[string]any
		require.NoError(t, yaml.Unmarshal(data, &stored))
		assert.Equal(t, "https://cms.example.com", stored["url"])
		assert.Equal(t, "secret", stored["token"])
		assert.Equal(t, "5m", stored["revalidate"])
		assert.Equal(t, map[string]any{"type": "nats"}, stored["cache"])
	})

	t.Run("unset removes nested keys", func(t *testing.T) {
		_, err := execute(t, commands.NewConfigCommand(), map[string]any{"config": path}, "unset", "cache.type")
		require.NoError(t, err)

		data, err := os.ReadFile(path)
		require.NoError(t, err)

		var stored map[string]any
		require.NoError(t, yaml.Unmarshal(data, &stored))
		assert.NotContains(t, stored, "cache")
		assert.Contains(t, stored, "url")
	})

	t.Run("set rejects bad values", func(t *testing.T) {
		settings := map[string]any{"config": path}

		_, err := execute(t, commands.NewConfigCommand(), settings, "set", "colour", "blue")
		require.ErrorIs(t, err, constants.ErrUnknownConfigKey)

		_, err = execute(t, commands.NewConfigCommand(), settings, "set", "timeout", "soon")
		require.ErrorIs(t, err, constants.ErrInvalidConfig)

		_, err = execute(t, commands.NewConfigCommand(), settings, "set", "cache.type", "redis")
		require.ErrorIs(t, err, constants.ErrInvalidConfig)
	})

	t.Run("show masks the token", func(t *testing.T) {
		settings := map[string]any{
			"url":    "https://cms.example.com",
			"token":  "secret",
			"output": constants.FormatJSON,
		}

		out, err := execute(t, commands.NewConfigCommand(), settings, "show")
		require.NoError(t, err)

		var shown map[string]any
		require.NoError(t, json.Unmarshal([]byte(out), &shown))
		assert.Equal(t, constants.MaskedSecret, shown["token"])
		assert.Equal(t, "https://cms.example.com", shown["url"])
		assert.NotContains(t, out, "secret")
	})
}

func TestVersionCommand(t *testing.T) {
	out, err := execute(t, commands.NewVersionCommand("1.2.3", "abc123", "2024-01-01"),
		map[string]any{"output": constants.FormatYAML})
	require.NoError(t, err)

	var info commands.VersionInfo
	require.NoError(t, yaml.Unmarshal([]byte(out), &info))
	assert.Equal(t, "1.2.3", info.Version)
	assert.Equal(t, "abc123", info.Commit)
	assert.Equal(t, "2024-01-01", info.Built)
	assert.NotEmpty(t, info.GoVersion)

	_, err = execute(t, commands.NewVersionCommand("1.2.3", "abc123", "2024-01-01"),
		map[string]any{"output": "xml"})
	require.ErrorIs(t, err, constants.ErrUnsupportedFormat)
}

func TestCacheCommand(t *testing.T) {
	cmd := commands.NewCacheCommand()
	assert.Equal(t, "cache", cmd.Use)

	invalidate := findSubcommand(cmd, "invalidate")
	require.NotNil(t, invalidate)

	_, err := execute(t, commands.NewCacheCommand(), map[string]any{"url": "https://cms.example.com"}, "invalidate")
	require.Error(t, err, "at least one tag is required")

	t.Run("warns about a cache local to the process", func(t *testing.T) {
		viper.Reset()
		t.Cleanup(viper.Reset)
		viper.Set("url", "https://cms.example.com")

		var out, errOut bytes.Buffer

		cmd := commands.NewCacheCommand()
		cmd.SetOut(&out)
		cmd.SetErr(&errOut)
		cmd.SetArgs([]string{"invalidate", "products"})

		require.NoError(t, cmd.Execute())
		assert.Equal(t, "Removed 0 cached response(s)\n", out.String())
		assert.Contains(t, errOut.String(), `cache type "memory" is not shared between processes`)
	})

	t.Run("no cache", func(t *testing.T) {
		out, err := execute(t, commands.NewCacheCommand(),
			map[string]any{"url": "https://cms.example.com", "cache": map[string]any{"type": "none"}},
			"invalidate", "products")
		require.NoError(t, err)
		assert.Equal(t, "Removed 0 cached response(s)\n", out)
	})
}

// findSubcommand finds a subcommand by name within a cobra command.
func findSubcommand(cmd *cobra.Command, name string) *cobra.Command {
	for _, c := range cmd.Commands() {
		if c.Name() == name {
			return c
		}
	}

	return nil
}
