package speech

import (
	"context"
	"fmt"
	"io"
	"net/http"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/dustin/go-humanize"

	"github.com/MimeLyc/video-note/pkg/log"
)

// DefaultModelBaseURL hosts the official ggml conversions of the whisper models.
const DefaultModelBaseURL = "https://huggingface.co/ggerganov/whisper.cpp/resolve/main/"

// Downloader fetches ggml model files into a local directory.
type Downloader struct {
	baseURL string
	client  *http.Client
}

func NewDownloader() *Downloader {
	return &Downloader{
		baseURL: DefaultModelBaseURL,
		client: &http.Client{
			Timeout: 30 * time.Minute,
		},
	}
}

// EnsureModel returns the local path of the ggml file for id, downloading it into dest when absent.
func (d *Downloader) EnsureModel(ctx context.Context, dest, id string) (string, error) {
	if err := os.MkdirAll(dest, 0o755); err != nil {
		return "", err
	}

	name := GGMLFileName(id)
	localPath := filepath.Join(dest, name)
	if info, err := os.Stat(localPath); err == nil && info.Size() > 0 {
		return localPath, nil
	}

	url := d.baseURL + name
	tmpPath := localPath + ".downloading"
	if err := d.download(ctx, url, tmpPath); err != nil {
		_ = os.Remove(tmpPath)
		return "", err
	}
	if err := os.Rename(tmpPath, localPath); err != nil {
		return "", err
	}
	return localPath, nil
}

func (d *Downloader) download(ctx context.Context, url, destPath string) error {
	log.Info("Downloading whisper model %s", url)
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, url, nil)
	if err != nil {
		return err
	}

	resp, err := d.client.Do(req)
	if err != nil {
		return err
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		return fmt.Errorf("download model: %s", resp.Status)
	}

	file, err := os.Create(destPath)
	if err != nil {
		return err
	}

	written, err := io.Copy(file, resp.Body)
	if closeErr := file.Close(); err == nil {
		err = closeErr
	}
	if err != nil {
		return err
	}

	log.Info("Downloaded whisper model to %s (%s)", destPath, humanize.Bytes(uint64(written)))
	return nil
}

// GGMLFileName maps a model id such as "base" to "ggml-base.bin".
func GGMLFileName(id string) string {
	name := strings.TrimSpace(id)
	if !strings.HasSuffix(name, ".bin") {
		name += ".bin"
	}
	if !strings.HasPrefix(name, "ggml-") {
		name = "ggml-" + name
	}
	return name
}
