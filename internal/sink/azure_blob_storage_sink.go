package sink

import (
	"context"
	"fmt"
	"io"

	"github.com/Azure/azure-sdk-for-go/sdk/storage/azblob"
	"github.com/chtzvt/tablemapper/internal/compression"
	"github.com/chtzvt/tablemapper/internal/secrets"
)

// UploadStreamAPI is the slice of the block blob client the sink uses.
type UploadStreamAPI interface {
	UploadStream(ctx context.Context, body io.Reader, options *azblob.UploadStreamOptions) (azblob.UploadStreamResponse, error)
}

type AzureBlobSink struct {
	account     string
	container   string
	prefix      string
	compression string
	serviceURL  string
	secrets     secrets.Store
	opts        map[string]interface{}

	// newBlob is swapped out by tests.
	newBlob func(ctx context.Context, blobName string) (UploadStreamAPI, error)
}

func NewAzureBlobSink(opts map[string]interface{}, secrets secrets.Store) (Sink, error) {
	account, _ := opts["account"].(string)
	container, _ := opts["container"].(string)
	prefix, _ := opts["prefix"].(string)
	comp, _ := opts["compression"].(string)
	serviceURL, _ := opts["service_url"].(string)
	if account == "" || container == "" {
		return nil, fmt.Errorf("azureblob sink requires 'account' and 'container' options")
	}
	if !compression.Supported(comp) {
		return nil, fmt.Errorf("unsupported compression: %s", comp)
	}
	if serviceURL == "" {
		serviceURL = fmt.Sprintf("https://%s.blob.core.windows.net/", account)
	}
	a := &AzureBlobSink{
		account:     account,
		container:   container,
		prefix:      prefix,
		compression: comp,
		serviceURL:  serviceURL,
		secrets:     secrets,
		opts:        opts,
	}
	a.newBlob = a.blockBlobClient
	return a, nil
}

func (a *AzureBlobSink) blockBlobClient(ctx context.Context, blobName string) (UploadStreamAPI, error) {
	key, err := lookupSecret(ctx, a.secrets, a.opts, "access_key_secret", "AZURE_STORAGE_KEY")
	if err != nil {
		return nil, err
	}
	cred, err := azblob.NewSharedKeyCredential(a.account, string(key))
	if err != nil {
		return nil, fmt.Errorf("azure shared key credential error: %w", err)
	}
	client, err := azblob.NewClientWithSharedKeyCredential(a.serviceURL, cred, nil)
	if err != nil {
		return nil, fmt.Errorf("azure blob client init error: %w", err)
	}
	return client.ServiceClient().NewContainerClient(a.container).NewBlockBlobClient(blobName), nil
}

func (a *AzureBlobSink) Close() error { return nil }

func (a *AzureBlobSink) Open(ctx context.Context, name string) (SinkWriter, error) {
	blob, err := a.newBlob(ctx, a.prefix+name)
	if err != nil {
		return nil, err
	}

	pr, pw := io.Pipe()
	done := make(chan error, 1)
	go func() {
		_, err := blob.UploadStream(ctx, pr, nil)
		if err != nil {
			_ = pr.CloseWithError(err)
		} else {
			_ = pr.Close()
		}
		done <- err
	}()
	w, err := compression.NewWriter(pw, a.compression)
	if err != nil {
		_ = pw.CloseWithError(err)
		<-done
		return nil, err
	}
	return &pipeSinkWriter{Writer: w, compressor: w, pw: pw, done: done}, nil
}

func init() {
	Register("azureblob", NewAzureBlobSink)
}
