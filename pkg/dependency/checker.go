package dependency

import (
	"context"

	"github.com/core-tools/hsu-watchad/pkg/logging"
)

// Readiness is recomputed on every check; it is never cached.
type Readiness struct {
	SearchIndexReady   bool
	DocumentStoreReady bool
	MessageQueueReady  bool
}

func (r Readiness) AllReady() bool {
	return r.SearchIndexReady && r.DocumentStoreReady && r.MessageQueueReady
}

// Probe is a read-only readiness test against one external system.
type Probe interface {
	Name() string
	Check(ctx context.Context) (bool, string)
}

// Checker runs the search index, document store and message queue probes in
// that order and stops at the first one that fails.
type Checker struct {
	searchIndex   Probe
	documentStore Probe
	messageQueue  Probe
	logger        logging.Logger
}

func NewChecker(searchIndex, documentStore, messageQueue Probe, logger logging.Logger) *Checker {
	return &Checker{
		searchIndex:   searchIndex,
		documentStore: documentStore,
		messageQueue:  messageQueue,
		logger:        logger,
	}
}

func (c *Checker) Check(ctx context.Context) Readiness {
	c.logger.Infof("Checking the engine environment ...")

	var readiness Readiness
	ordered := []struct {
		probe Probe
		ready *bool
	}{
		{c.searchIndex, &readiness.SearchIndexReady},
		{c.documentStore, &readiness.DocumentStoreReady},
		{c.messageQueue, &readiness.MessageQueueReady},
	}

	for _, entry := range ordered {
		ok, message := entry.probe.Check(ctx)
		if !ok {
			c.logger.Errorf("Dependency check failed, probe: %s, message: %s", entry.probe.Name(), message)
			return readiness
		}
		c.logger.Debugf("Dependency check passed, probe: %s, message: %s", entry.probe.Name(), message)
		*entry.ready = true
	}

	c.logger.Infof("Check the engine environment successfully!")
	return readiness
}

func (c *Checker) CheckAll(ctx context.Context) bool {
	return c.Check(ctx).AllReady()
}
