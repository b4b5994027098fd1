// Package docstore persists engine settings in the document database.
//
// Settings live in one collection keyed by "<domain>:<name>"; engine-wide
// settings use an empty domain. Sensitive groups have their own collection.
// Every write is an upsert so install can be re-run by hand.
package docstore

import (
	"context"
	stdErrors "errors"
	"time"

	"github.com/core-tools/hsu-watchad/pkg/errors"
	"github.com/core-tools/hsu-watchad/pkg/logging"

	"go.mongodb.org/mongo-driver/bson"
	"go.mongodb.org/mongo-driver/mongo"
	"go.mongodb.org/mongo-driver/mongo/options"
	"go.mongodb.org/mongo-driver/mongo/readpref"
)

const (
	SettingsCollection        = "settings"
	SensitiveGroupsCollection = "sensitive_groups"
)

// Setting names
const (
	SettingLDAP              = "ldap"
	SettingDomainControllers = "domain_controllers"
	SettingLearningEndTime   = "learning_end_time"
)

type Config struct {
	URI      string        `yaml:"uri"`
	Database string        `yaml:"database"`
	Timeout  time.Duration `yaml:"timeout,omitempty"`
}

func DefaultConfig() Config {
	return Config{
		URI:      "mongodb://127.0.0.1:27017",
		Database: "watchad",
		Timeout:  5 * time.Second,
	}
}

type LDAPSettings struct {
	Domain   string `bson:"domain"`
	Server   string `bson:"server"`
	Username string `bson:"username"`
	Password string `bson:"password"`
}

type SensitiveGroup struct {
	Name string `bson:"name"`
	DN   string `bson:"dn"`
	SID  string `bson:"sid"`
}

type settingDocument struct {
	ID        string      `bson:"_id"`
	Domain    string      `bson:"domain"`
	Name      string      `bson:"name"`
	Value     interface{} `bson:"value"`
	UpdatedAt time.Time   `bson:"updated_at"`
}

type Store struct {
	config Config
	client *mongo.Client
	db     *mongo.Database
	logger logging.Logger
}

// Connect creates the client; the server is not contacted until the first operation.
func Connect(ctx context.Context, config Config, logger logging.Logger) (*Store, error) {
	clientOptions := options.Client().
		ApplyURI(config.URI).
		SetAppName("watchadctl").
		SetConnectTimeout(config.Timeout).
		SetServerSelectionTimeout(config.Timeout)

	client, err := mongo.Connect(ctx, clientOptions)
	if err != nil {
		return nil, errors.NewConfigurationError("invalid document store configuration", err).WithContext("database", config.Database)
	}

	return newStore(client, config, logger), nil
}

func newStore(client *mongo.Client, config Config, logger logging.Logger) *Store {
	return &Store{
		config: config,
		client: client,
		db:     client.Database(config.Database),
		logger: logger,
	}
}

func (s *Store) Close(ctx context.Context) error {
	return s.client.Disconnect(ctx)
}

func (s *Store) Ping(ctx context.Context) error {
	if err := s.client.Ping(ctx, readpref.Primary()); err != nil {
		return errors.NewNetworkError("document store ping failed", err).WithContext("database", s.config.Database)
	}
	return nil
}

func (s *Store) SaveLDAPSettings(ctx context.Context, settings LDAPSettings) error {
	return s.putSetting(ctx, settings.Domain, SettingLDAP, settings)
}

func (s *Store) LoadLDAPSettings(ctx context.Context, domain string) (LDAPSettings, error) {
	var doc struct {
		Value LDAPSettings `bson:"value"`
	}
	err := s.db.Collection(SettingsCollection).
		FindOne(ctx, bson.M{"_id": SettingID(domain, SettingLDAP)}).
		Decode(&doc)
	if stdErrors.Is(err, mongo.ErrNoDocuments) {
		return LDAPSettings{}, errors.NewNotFoundError("no directory settings stored for domain "+domain, err)
	}
	if err != nil {
		return LDAPSettings{}, errors.NewNetworkError("failed to load directory settings", err).WithContext("domain", domain)
	}
	return doc.Value, nil
}

func (s *Store) SaveDomainControllers(ctx context.Context, domain string, hosts []string) error {
	return s.putSetting(ctx, domain, SettingDomainControllers, hosts)
}

// SaveDefaultSettings writes each default only if the setting does not exist yet,
// so values changed by an operator survive a repeated install.
func (s *Store) SaveDefaultSettings(ctx context.Context, domain string, defaults map[string]interface{}) error {
	collection := s.db.Collection(SettingsCollection)
	for name, value := range defaults {
		update := bson.M{
			"$setOnInsert": bson.M{
				"domain": domain,
				"name":   name,
				"value":  value,
			},
			"$set": bson.M{"updated_at": time.Now().UTC()},
		}
		_, err := collection.UpdateOne(ctx, bson.M{"_id": SettingID(domain, name)}, update, options.Update().SetUpsert(true))
		if err != nil {
			return errors.NewNetworkError("failed to write default setting", err).WithContext("domain", domain).WithContext("name", name)
		}
	}
	s.logger.Debugf("Default settings written, domain: %s, count: %d", domain, len(defaults))
	return nil
}

func (s *Store) SaveSensitiveGroups(ctx context.Context, domain string, groups []SensitiveGroup) error {
	collection := s.db.Collection(SensitiveGroupsCollection)
	for _, group := range groups {
		update := bson.M{"$set": bson.M{
			"domain":     domain,
			"name":       group.Name,
			"dn":         group.DN,
			"sid":        group.SID,
			"updated_at": time.Now().UTC(),
		}}
		_, err := collection.UpdateOne(ctx, bson.M{"_id": SettingID(domain, group.Name)}, update, options.Update().SetUpsert(true))
		if err != nil {
			return errors.NewNetworkError("failed to write sensitive group", err).WithContext("domain", domain).WithContext("group", group.Name)
		}
	}
	return nil
}

func (s *Store) SaveLearningEndTime(ctx context.Context, endTime time.Time) error {
	return s.putSetting(ctx, "", SettingLearningEndTime, endTime.UTC())
}

func (s *Store) putSetting(ctx context.Context, domain, name string, value interface{}) error {
	doc := settingDocument{
		ID:        SettingID(domain, name),
		Domain:    domain,
		Name:      name,
		Value:     value,
		UpdatedAt: time.Now().UTC(),
	}
	_, err := s.db.Collection(SettingsCollection).ReplaceOne(ctx, bson.M{"_id": doc.ID}, doc, options.Replace().SetUpsert(true))
	if err != nil {
		return errors.NewNetworkError("failed to write setting", err).WithContext("domain", domain).WithContext("name", name)
	}
	s.logger.Debugf("Setting written, id: %s", doc.ID)
	return nil
}

// SettingID is the document key of a setting.
func SettingID(domain, name string) string {
	return domain + ":" + name
}
