package main

import (
	"context"
	"fmt"

	"github.com/akpande2/bom-buddy-factory-sub000/config"
	"github.com/akpande2/bom-buddy-factory-sub000/models"
	"github.com/akpande2/bom-buddy-factory-sub000/procurement"
	"github.com/akpande2/bom-buddy-factory-sub000/storage"
	"github.com/akpande2/bom-buddy-factory-sub000/utils"
	"github.com/sirupsen/logrus"
)

// app is everything a subcommand may touch, opened from the environment.
type app struct {
	settings *config.Settings
	logger   *logrus.Logger
	kv       storage.KV
	stores   *models.Stores
	docs     *procurement.Pipeline
	archiver *procurement.GCSArchiver
	closers  []func()
}

func openApp(ctx context.Context) (*app, error) {
	a := &app{settings: config.Load(), logger: config.GetLogger()}

	kv, err := storage.Open(ctx, a.settings, a.logger)
	if err != nil {
		return nil, fmt.Errorf("open store: %w", err)
	}
	a.kv = kv
	a.closers = append(a.closers, func() { _ = kv.Close() })

	var publisher config.EventPublisher = config.NoopPublisher{}
	if a.settings.PubSubTopic != "" {
		pub, err := config.NewPubSubPublisher(ctx, a.logger, a.settings.PubSubProjectID, a.settings.PubSubTopic)
		if err != nil {
			a.close()
			return nil, err
		}
		publisher = pub
		a.closers = append(a.closers, func() { _ = pub.Close() })
	}

	stores, err := models.NewStores(ctx, kv, models.StoreOptions{
		Logger:            a.logger,
		Publisher:         publisher,
		UploadMaxBytes:    a.settings.UploadMaxBytes,
		StrictLedgerStock: config.StrictLedgerStock(),
	})
	if err != nil {
		a.close()
		return nil, err
	}
	a.stores = stores
	a.closers = append(a.closers, stores.Close)

	repoOpts := procurement.RepositoryOptions{Logger: a.logger, Publisher: publisher}
	if a.settings.GCSBucket != "" {
		client, err := utils.GetGCSClient(ctx, a.settings.GCSCredentialsJSON)
		if err != nil {
			a.close()
			return nil, fmt.Errorf("gcs client: %w", err)
		}
		a.closers = append(a.closers, func() { _ = client.Close() })
		archiveOpts := procurement.ArchiverOptions{AccessBaseURL: a.settings.StorageAccessBaseURL}
		signer, err := utils.NewURLSigner(ctx, utils.SignerCredentials{
			ServiceAccountJSON: a.settings.GCSCredentialsJSON,
			Email:              a.settings.GCSSignerEmail,
			PrivateKey:         a.settings.GCSSignerPrivateKey,
		})
		if err != nil {
			// archiving still works; only signed links are unavailable
			a.logger.WithError(err).Warn("download links disabled")
		} else {
			archiveOpts.Signer = signer
		}
		a.archiver = procurement.NewGCSArchiver(utils.GCSBucket{Client: client, Name: a.settings.GCSBucket}, archiveOpts)
		repoOpts.Archiver = a.archiver
	}
	repo, err := procurement.NewRepository(ctx, kv, repoOpts)
	if err != nil {
		a.close()
		return nil, err
	}
	a.closers = append(a.closers, repo.Close)
	a.docs = procurement.NewPipeline(repo, a.logger)
	return a, nil
}

// close releases in reverse order of opening.
func (a *app) close() {
	for i := len(a.closers) - 1; i >= 0; i-- {
		a.closers[i]()
	}
	a.closers = nil
}
