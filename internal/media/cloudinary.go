package media

import (
	"context"
	"errors"
	"fmt"
	"io"
	"net"

	"storefront/internal/retry"

	"github.com/cloudinary/cloudinary-go/v2"
	"github.com/cloudinary/cloudinary-go/v2/api"
	"github.com/cloudinary/cloudinary-go/v2/api/uploader"
)

type Cloudinary struct {
	cld   *cloudinary.Cloudinary
	root  string
	retry retry.Config
}

// NewCloudinary builds the store from a CLOUDINARY_URL. Every upload lands
// below root (e.g. "storefront/categories").
func NewCloudinary(cloudinaryURL, root string) (*Cloudinary, error) {
	cld, err := cloudinary.NewFromURL(cloudinaryURL)
	if err != nil {
		return nil, fmt.Errorf("cloudinary: %w", err)
	}
	return &Cloudinary{
		cld:   cld,
		root:  root,
		retry: retry.Once(isNetworkError),
	}, nil
}

func (c *Cloudinary) folder(name string) string {
	switch {
	case c.root == "":
		return name
	case name == "":
		return c.root
	default:
		return c.root + "/" + name
	}
}

// Upload stores file under folder with the given public id and returns its
// secure URL. Uploads never overwrite an existing asset.
func (c *Cloudinary) Upload(ctx context.Context, file io.Reader, folder, publicID string) (string, error) {
	policy := c.retry
	seeker, rewindable := file.(io.Seeker)
	if !rewindable {
		policy.Attempts = 1
	}

	var resp *uploader.UploadResult
	attempt := 0
	err := retry.Do(ctx, policy, func(ctx context.Context) error {
		if attempt++; attempt > 1 {
			if _, err := seeker.Seek(0, io.SeekStart); err != nil {
				return fmt.Errorf("rewind upload: %w", err)
			}
		}
		var err error
		resp, err = c.cld.Upload.Upload(ctx, file, uploader.UploadParams{
			Folder:    c.folder(folder),
			PublicID:  publicID,
			Overwrite: api.Bool(false),
		})
		return err
	})
	if err != nil {
		return "", fmt.Errorf("%w: upload: %v", ErrUpstream, err)
	}
	if resp.Error.Message != "" {
		return "", fmt.Errorf("%w: upload: %s", ErrUpstream, resp.Error.Message)
	}
	return resp.SecureURL, nil
}

// Destroy removes the asset a stored URL points at.
func (c *Cloudinary) Destroy(ctx context.Context, rawURL string) error {
	publicID, err := c.publicID(rawURL)
	if err != nil {
		return err
	}

	resp, err := c.cld.Upload.Destroy(ctx, uploader.DestroyParams{PublicID: publicID})
	if err != nil {
		return fmt.Errorf("%w: destroy %s: %v", ErrUpstream, publicID, err)
	}
	if resp.Result != "ok" {
		return fmt.Errorf("%w: destroy %s: result %q", ErrUpstream, publicID, resp.Result)
	}
	return nil
}

// publicID keeps the folder prefix Cloudinary stores as part of the id.
func (c *Cloudinary) publicID(rawURL string) (string, error) {
	name, err := PublicIDFromURL(rawURL)
	if err != nil {
		return "", err
	}
	if folder := FolderFromURL(rawURL); folder != "" {
		return folder + "/" + name, nil
	}
	return name, nil
}

func isNetworkError(err error) bool {
	var netErr net.Error
	return errors.As(err, &netErr) && netErr.Timeout()
}
