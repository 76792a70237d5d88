package main

import (
	"context"
	"errors"
	"fmt"
	"io"
	"mime/multipart"
	"net/http"
	"strconv"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/google/uuid"
)

const (
	maxUploadBytes  = 15 * 1024 * 1024
	maxImagesPerReq = 10
)

var (
	errNoImages      = errors.New("at least one image is required")
	errTooManyImages = fmt.Errorf("maximum %d images allowed", maxImagesPerReq)
	errImageType     = errors.New("only jpeg, png and webp images are allowed")
	errBadForm       = errors.New("request must be a valid multipart form")
)

var allowedImageTypes = map[string]bool{"image/jpeg": true, "image/png": true, "image/webp": true}

func readIDParam(r *http.Request, name string) (int64, error) {
	id, err := strconv.ParseInt(chi.URLParam(r, name), 10, 64)
	if err != nil || id < 1 {
		return 0, fmt.Errorf("invalid %s", name)
	}
	return id, nil
}

// sniffMIME detects the content type from the first 512 bytes and rewinds.
func sniffMIME(file multipart.File) (string, error) {
	buf := make([]byte, 512)
	n, err := file.Read(buf)
	if err != nil && err != io.EOF {
		return "", fmt.Errorf("read: %w", err)
	}
	mime := http.DetectContentType(buf[:n])

	if _, err := file.Seek(0, io.SeekStart); err != nil {
		return "", fmt.Errorf("seek reset: %w", err)
	}
	return mime, nil
}

// parseImageForm returns the files posted under field.
func parseImageForm(w http.ResponseWriter, r *http.Request, field string, limit int) ([]*multipart.FileHeader, error) {
	r.Body = http.MaxBytesReader(w, r.Body, maxUploadBytes)

	if err := r.ParseMultipartForm(maxUploadBytes); err != nil {
		return nil, fmt.Errorf("%w: %w", errBadForm, err)
	}

	files := r.MultipartForm.File[field]
	switch {
	case len(files) == 0:
		return nil, errNoImages
	case len(files) > limit:
		return nil, errTooManyImages
	}
	return files, nil
}

// uploadImages checks and uploads every file into folder. When one upload
// fails the ones already stored are removed again.
func (app *application) uploadImages(ctx context.Context, files []*multipart.FileHeader, folder string) ([]string, error) {
	var urls []string
	for _, fh := range files {
		url, err := app.uploadImage(ctx, fh, folder)
		if err != nil {
			app.destroyImagesAsync(urls)
			return nil, err
		}
		urls = append(urls, url)
	}
	return urls, nil
}

func (app *application) uploadImage(ctx context.Context, fh *multipart.FileHeader, folder string) (string, error) {
	file, err := fh.Open()
	if err != nil {
		return "", fmt.Errorf("open file: %w", err)
	}
	defer file.Close()

	mime, err := sniffMIME(file)
	if err != nil {
		return "", err
	}
	if !allowedImageTypes[mime] {
		return "", fmt.Errorf("%w: got %s", errImageType, mime)
	}

	publicID := fmt.Sprintf("%d_%s", time.Now().Unix(), uuid.NewString()[:8])
	return app.media.Upload(ctx, file, folder, publicID)
}

// uploadErrorResponse separates bad input from a failing media host.
func (app *application) uploadErrorResponse(w http.ResponseWriter, r *http.Request, err error) {
	var maxBytesErr *http.MaxBytesError
	switch {
	case errors.As(err, &maxBytesErr):
		app.badRequestResponse(w, r, fmt.Errorf("upload exceeds %d bytes", maxBytesErr.Limit))
	case errors.Is(err, errBadForm):
		app.badRequestResponse(w, r, errBadForm)
	case errors.Is(err, errNoImages), errors.Is(err, errTooManyImages), errors.Is(err, errImageType):
		app.badRequestResponse(w, r, err)
	default:
		app.upstreamErrorResponse(w, r, err)
	}
}

// destroyImagesAsync removes images in the background; failures are only logged.
func (app *application) destroyImagesAsync(urls []string) {
	if len(urls) == 0 {
		return
	}
	go func(urls []string) {
		ctx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
		defer cancel()
		for _, u := range urls {
			if err := app.media.Destroy(ctx, u); err != nil {
				app.logger.Warnw("failed to delete image", "url", u, "error", err)
			}
		}
	}(append([]string(nil), urls...))
}
