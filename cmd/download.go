package main

import (
	"context"
	"errors"
	"io"
	"io/fs"
	"os"
	"os/signal"
	"path/filepath"
	"strings"
	"syscall"

	"github.com/rotisserie/eris"
	"github.com/spf13/cobra"
	"go.uber.org/zap"

	"github.com/sells-group/airport-borders/internal/config"
	"github.com/sells-group/airport-borders/internal/fetcher"
)

var downloadCmd = &cobra.Command{
	Use:   "download",
	Short: "Download the airports CSV",
	Long:  "Fetches the ourairports CSV to airports.path. The response ETag is kept next to the file so later runs skip unchanged data unless --force is given.",
	RunE: func(cmd *cobra.Command, _ []string) error {
		ctx, stop := signal.NotifyContext(cmd.Context(), syscall.SIGINT, syscall.SIGTERM)
		defer stop()

		url, _ := cmd.Flags().GetString("url")
		if url == "" {
			url = cfg.Airports.URL
		}
		out, _ := cmd.Flags().GetString("out")
		if out == "" {
			out = cfg.Airports.Path
		}
		force, _ := cmd.Flags().GetBool("force")

		f := fetcher.NewHTTPFetcher(httpOptions(cfg.Fetch))
		changed, err := runDownload(ctx, f, url, out, force)
		if err != nil {
			return err
		}

		zap.L().Info("download complete",
			zap.String("command", "download"),
			zap.String("path", out),
			zap.Bool("changed", changed),
		)
		return nil
	},
}

func init() {
	downloadCmd.Flags().String("url", "", "source URL (default airports.url)")
	downloadCmd.Flags().String("out", "", "output path (default airports.path)")
	downloadCmd.Flags().Bool("force", false, "download even if the stored ETag is current")
	rootCmd.AddCommand(downloadCmd)
}

func httpOptions(c config.FetchConfig) fetcher.HTTPOptions {
	return fetcher.HTTPOptions{
		UserAgent:         c.UserAgent,
		Timeout:           c.Timeout(),
		MaxRetries:        c.MaxRetries,
		RequestsPerSecond: c.RequestsPerSecond,
	}
}

func etagPath(path string) string { return path + ".etag" }

// runDownload fetches url into path. When path and its ETag sidecar both
// exist the request is conditional (unless force is set) and a 304 leaves
// the file untouched. It reports whether path was rewritten.
func runDownload(ctx context.Context, f fetcher.Fetcher, url, path string, force bool) (bool, error) {
	etag := ""
	if !force {
		if _, err := os.Stat(path); err == nil {
			etag = readETag(path)
		}
	}

	body, newTag, changed, err := f.DownloadIfChanged(ctx, url, etag)
	if err != nil {
		return false, eris.Wrapf(err, "download %s", url)
	}
	if !changed {
		zap.L().Info("airports unchanged", zap.String("etag", etag))
		return false, nil
	}
	defer body.Close() //nolint:errcheck

	if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
		return false, eris.Wrap(err, "create directory")
	}
	tmp, err := os.CreateTemp(filepath.Dir(path), filepath.Base(path)+".*.part")
	if err != nil {
		return false, eris.Wrap(err, "create file")
	}
	defer os.Remove(tmp.Name()) //nolint:errcheck

	if _, err := io.Copy(tmp, body); err != nil {
		_ = tmp.Close()
		return false, eris.Wrap(err, "write file")
	}
	if err := tmp.Close(); err != nil {
		return false, eris.Wrap(err, "close file")
	}
	if err := os.Rename(tmp.Name(), path); err != nil {
		return false, eris.Wrap(err, "rename file")
	}

	if newTag == "" {
		if err := os.Remove(etagPath(path)); err != nil && !errors.Is(err, fs.ErrNotExist) {
			return true, eris.Wrap(err, "remove etag")
		}
		return true, nil
	}
	if err := os.WriteFile(etagPath(path), []byte(newTag+"\n"), 0o644); err != nil {
		return true, eris.Wrap(err, "write etag")
	}
	return true, nil
}

func readETag(path string) string {
	data, err := os.ReadFile(etagPath(path))
	if err != nil {
		return ""
	}
	return strings.TrimSpace(string(data))
}
