package dashboard

import (
	"mime"
	"net/http"
	"strconv"
)

// attachment implements receipt.Downloader by sending the export as an
// HTTP file download.
type attachment struct {
	w       http.ResponseWriter
	written bool
}

func (a *attachment) TriggerDownload(data []byte, filename string) error {
	h := a.w.Header()
	h.Set("Content-Type", "text/csv; charset=utf-8")
	h.Set("Content-Disposition", mime.FormatMediaType("attachment", map[string]string{"filename": filename}))
	h.Set("Content-Length", strconv.Itoa(len(data)))
	a.w.WriteHeader(http.StatusOK)
	a.written = true
	_, err := a.w.Write(data)
	return err
}
