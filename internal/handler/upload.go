package handler

import (
	"errors"
	"fmt"
	"io"
	"net/http"

	"go-user-accounts/internal/media"
	"go-user-accounts/pkg/apierror"
)

const multipartMemory = 4 << 20

func parseMultipart(r *http.Request) error {
	if err := r.ParseMultipartForm(multipartMemory); err != nil {
		var tooLarge *http.MaxBytesError
		if errors.As(err, &tooLarge) {
			return err
		}
		return apierror.Validation("Invalid multipart form")
	}
	return nil
}

// formUpload returns nil when the field is absent.
func formUpload(r *http.Request, field string) (*media.Upload, error) {
	file, header, err := r.FormFile(field)
	if errors.Is(err, http.ErrMissingFile) {
		return nil, nil
	}
	if err != nil {
		return nil, apierror.Validation(fmt.Sprintf("Invalid %s file", field))
	}
	defer file.Close()

	data, err := io.ReadAll(file)
	if err != nil {
		return nil, fmt.Errorf("read %s upload: %w", field, err)
	}

	return &media.Upload{
		Filename:    header.Filename,
		ContentType: header.Header.Get("Content-Type"),
		Data:        data,
	}, nil
}
