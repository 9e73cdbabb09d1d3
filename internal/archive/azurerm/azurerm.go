// Package azurerm implements an Azure Blob Storage archive backend.
package azurerm

import (
	"context"
	"errors"
	"fmt"
	"io"
	"net/http"

	"github.com/Azure/azure-sdk-for-go/sdk/azcore"
	"github.com/Azure/azure-sdk-for-go/sdk/azidentity"
	"github.com/Azure/azure-sdk-for-go/sdk/storage/azblob"
	"github.com/Azure/azure-sdk-for-go/sdk/storage/azblob/bloberror"
	"github.com/cloudconsole/engine/internal/archive"
)

func init() {
	archive.Register("azurerm", NewBackend)
}

// Backend stores objects as blobs in one container.
type Backend struct {
	client    *azblob.Client
	container string
	prefix    string
}

func NewBackend(cfg map[string]string) (archive.Archive, error) {
	account := cfg["storage_account_name"]
	if account == "" {
		return nil, fmt.Errorf("azurerm archive requires 'storage_account_name' configuration")
	}
	container := cfg["container_name"]
	if container == "" {
		return nil, fmt.Errorf("azurerm archive requires 'container_name' configuration")
	}

	serviceURL := fmt.Sprintf("https://%s.blob.core.windows.net/", account)
	if endpoint := cfg["endpoint"]; endpoint != "" {
		serviceURL = endpoint
	}

	var client *azblob.Client
	var err error
	if conn := cfg["connection_string"]; conn != "" {
		client, err = azblob.NewClientFromConnectionString(conn, nil)
	} else {
		cred, credErr := azidentity.NewDefaultAzureCredential(nil)
		if credErr != nil {
			return nil, fmt.Errorf("create default Azure credential: %w", credErr)
		}
		client, err = azblob.NewClient(serviceURL, cred, nil)
	}
	if err != nil {
		return nil, fmt.Errorf("create Azure blob client: %w", err)
	}
	return &Backend{client: client, container: container, prefix: cfg["prefix"]}, nil
}

func (b *Backend) Type() string { return "azurerm" }

func (b *Backend) Put(ctx context.Context, key string, data io.Reader) error {
	full := archive.Join(b.prefix, key)
	if _, err := b.client.UploadStream(ctx, b.container, full, data, nil); err != nil {
		return fmt.Errorf("write azure://%s/%s: %w", b.container, full, err)
	}
	return nil
}

func (b *Backend) Get(ctx context.Context, key string) (io.ReadCloser, error) {
	full := archive.Join(b.prefix, key)
	resp, err := b.client.DownloadStream(ctx, b.container, full, nil)
	if err != nil {
		if bloberror.HasCode(err, bloberror.BlobNotFound) {
			return nil, archive.ErrNotFound
		}
		return nil, fmt.Errorf("read azure://%s/%s: %w", b.container, full, err)
	}
	return resp.Body, nil
}

func (b *Backend) Delete(ctx context.Context, key string) error {
	full := archive.Join(b.prefix, key)
	if _, err := b.client.DeleteBlob(ctx, b.container, full, nil); err != nil {
		var respErr *azcore.ResponseError
		if errors.As(err, &respErr) && respErr.StatusCode == http.StatusNotFound {
			return nil
		}
		return fmt.Errorf("delete azure://%s/%s: %w", b.container, full, err)
	}
	return nil
}
