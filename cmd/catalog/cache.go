package main

import (
	"bytes"
	"encoding/json"
	"io"
	"net/http"
	"strings"
	"time"

	"github.com/goliatone/go-catalog-cache/internal/server"
	"github.com/goliatone/go-errors"
	"github.com/spf13/cobra"
)

func newCacheCmd(opts *rootOptions) *cobra.Command {
	cmd := &cobra.Command{
		Use:   "cache",
		Short: "Inspect and invalidate cache tags",
	}

	tags := &cobra.Command{
		Use:   "tags",
		Short: "Print every cache tag with its TTL",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			c, err := opts.container()
			if err != nil {
				return err
			}
			svc := c.CacheService()
			if svc == nil {
				return printJSON(cmd.OutOrStdout(), []any{})
			}

			type tagInfo struct {
				Tag string `json:"tag"`
				TTL string `json:"ttl"`
			}
			out := make([]tagInfo, 0, len(c.Tags()))
			for _, tag := range c.Tags() {
				ttl, _ := svc.TTL(tag)
				out = append(out, tagInfo{Tag: tag, TTL: ttl.String()})
			}
			return printJSON(cmd.OutOrStdout(), out)
		},
	}

	var serverURL, secret string
	invalidate := &cobra.Command{
		Use:   "invalidate [tag...]",
		Short: "Ask a running server to drop the given tags, or everything",
		RunE: func(cmd *cobra.Command, args []string) error {
			if secret == "" {
				cfg, err := opts.load()
				if err != nil {
					return err
				}
				secret = cfg.Server.RevalidateSecret
			}
			result, err := revalidate(cmd, serverURL, secret, args)
			if err != nil {
				return err
			}
			return printJSON(cmd.OutOrStdout(), result)
		},
	}
	invalidate.Flags().StringVar(&serverURL, "server", "http://localhost:8080", "base URL of a running catalog server")
	invalidate.Flags().StringVar(&secret, "secret", "", "revalidation secret (defaults to the configured one)")

	cmd.AddCommand(tags, invalidate)
	return cmd
}

func revalidate(cmd *cobra.Command, serverURL, secret string, tags []string) (map[string]any, error) {
	payload, err := json.Marshal(map[string][]string{"tags": tags})
	if err != nil {
		return nil, errors.Wrap(err, errors.CategoryInternal, "encode revalidation request")
	}

	endpoint := strings.TrimRight(serverURL, "/") + "/revalidate"
	req, err := http.NewRequestWithContext(cmd.Context(), http.MethodPost, endpoint, bytes.NewReader(payload))
	if err != nil {
		return nil, errors.Wrap(err, errors.CategoryBadInput, "build revalidation request").
			WithMetadata(map[string]any{"server": serverURL})
	}
	req.Header.Set("Content-Type", "application/json")
	if secret != "" {
		req.Header.Set(server.SecretHeader, secret)
	}

	client := &http.Client{Timeout: 10 * time.Second}
	resp, err := client.Do(req)
	if err != nil {
		return nil, errors.Wrap(err, errors.CategoryExternal, "send revalidation request").
			WithMetadata(map[string]any{"server": serverURL})
	}
	defer resp.Body.Close()

	body, _ := io.ReadAll(io.LimitReader(resp.Body, 64<<10))
	if resp.StatusCode != http.StatusOK {
		return nil, errors.New("revalidation rejected: "+strings.TrimSpace(string(body)), errors.CategoryExternal).
			WithCode(resp.StatusCode)
	}

	var out map[string]any
	if err := json.Unmarshal(body, &out); err != nil {
		return nil, errors.Wrap(err, errors.CategoryExternal, "decode revalidation response")
	}
	return out, nil
}
