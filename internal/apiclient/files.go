package apiclient

import (
	"bytes"
	"context"
	"fmt"
	"io"
	"mime"
	"mime/multipart"
	"net/http"
	"net/url"
	"path/filepath"

	"boutique/backoffice/internal/apperr"
	"boutique/backoffice/internal/domain"
)

// Download is a streamed binary response.
type Download struct {
	Filename    string
	ContentType string
	Bytes       int64
}

// DownloadInvoicePDF streams the invoice as an attachment.
func (c *Client) DownloadInvoicePDF(ctx context.Context, id int, w io.Writer) (Download, error) {
	return c.download(ctx, itemPath("invoices", id)+"download_pdf/", nil, fmt.Sprintf("facture_%d.pdf", id), w)
}

// PreviewInvoicePDF streams the inline rendering of the invoice.
func (c *Client) PreviewInvoicePDF(ctx context.Context, id int, w io.Writer) (Download, error) {
	return c.download(ctx, itemPath("invoices", id)+"preview_pdf/", nil, fmt.Sprintf("facture_%d.pdf", id), w)
}

func (c *Client) ExportSalesReport(ctx context.Context, from string, to string, w io.Writer) (Download, error) {
	return c.download(ctx, "/sales/export_report/", reportQuery(from, to), reportFilename("rapport_ventes", from, to), w)
}

func (c *Client) ExportExpensesReport(ctx context.Context, from string, to string, w io.Writer) (Download, error) {
	return c.download(ctx, "/expenses/export_report/", reportQuery(from, to), reportFilename("rapport_depenses", from, to), w)
}

// ImportProductsExcel uploads a workbook as the multipart field "file".
// The upload is a write and is never retried.
func (c *Client) ImportProductsExcel(ctx context.Context, filename string, r io.Reader) (domain.ImportResult, error) {
	var buf bytes.Buffer
	mw := multipart.NewWriter(&buf)
	part, err := mw.CreateFormFile("file", filepath.Base(filename))
	if err != nil {
		return domain.ImportResult{}, fmt.Errorf("build upload: %w", err)
	}
	if _, err := io.Copy(part, r); err != nil {
		return domain.ImportResult{}, fmt.Errorf("read workbook: %w", err)
	}
	if err := mw.Close(); err != nil {
		return domain.ImportResult{}, fmt.Errorf("build upload: %w", err)
	}

	var out domain.ImportResult
	err = c.doJSON(ctx, request{
		method:      http.MethodPost,
		path:        "/products/import-excel/",
		body:        buf.Bytes(),
		contentType: mw.FormDataContentType(),
	}, &out)
	return out, err
}

func (c *Client) download(ctx context.Context, path string, query url.Values, fallback string, w io.Writer) (Download, error) {
	resp, err := c.send(ctx, request{method: http.MethodGet, path: path, query: query})
	if err != nil {
		return Download{}, err
	}
	defer resp.Body.Close()

	if isJSON(resp.Header.Get("Content-Type")) {
		return Download{}, &apperr.ServerError{Status: resp.StatusCode, Detail: "expected a file, got a JSON body"}
	}

	n, err := io.Copy(w, resp.Body)
	if err != nil {
		return Download{}, &apperr.NetworkError{Op: "GET " + path, Err: err}
	}
	return Download{
		Filename:    attachmentName(resp.Header.Get("Content-Disposition"), fallback),
		ContentType: resp.Header.Get("Content-Type"),
		Bytes:       n,
	}, nil
}

func reportQuery(from string, to string) url.Values {
	q := url.Values{}
	if from != "" {
		q.Set("date_from", from)
	}
	if to != "" {
		q.Set("date_to", to)
	}
	return q
}

func reportFilename(prefix string, from string, to string) string {
	if from == "" {
		from = "all"
	}
	if to == "" {
		to = "all"
	}
	return prefix + "_" + from + "_" + to + ".xlsx"
}

func attachmentName(header string, fallback string) string {
	if header == "" {
		return fallback
	}
	_, params, err := mime.ParseMediaType(header)
	if err != nil {
		return fallback
	}
	name := filepath.Base(params["filename"])
	switch name {
	case "", ".", "..", "/":
		return fallback
	}
	return name
}
