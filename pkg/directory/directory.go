// Package directory queries the organization's LDAP directory for the
// domain-controller inventory and the privileged groups to monitor.
package directory

import (
	"crypto/tls"
	"encoding/binary"
	"fmt"
	"net"
	"strings"
	"time"

	"github.com/core-tools/hsu-watchad/pkg/errors"
	"github.com/core-tools/hsu-watchad/pkg/logging"

	"github.com/go-ldap/ldap/v3"
)

// userAccountControl SERVER_TRUST_ACCOUNT bit, set on domain controllers.
const domainControllerFilter = "(&(objectCategory=computer)(userAccountControl:1.2.840.113556.1.4.803:=8192))"

const searchPageSize = 500

type Config struct {
	Timeout            time.Duration `yaml:"timeout,omitempty"`
	UseTLS             bool          `yaml:"use_tls,omitempty"`
	InsecureSkipVerify bool          `yaml:"insecure_skip_verify,omitempty"`
}

func DefaultConfig() Config {
	return Config{Timeout: 10 * time.Second}
}

type Credentials struct {
	Server   string
	Username string
	Password string
}

type Group struct {
	Name string
	DN   string
	SID  string
}

type Client struct {
	conn   ldap.Client
	baseDN string
	logger logging.Logger
}

func newClient(conn ldap.Client, domain string, logger logging.Logger) *Client {
	return &Client{
		conn:   conn,
		baseDN: BaseDN(domain),
		logger: logger,
	}
}

// Dial connects to the directory server and binds with the given credentials.
func Dial(config Config, credentials Credentials, domain string, logger logging.Logger) (*Client, error) {
	url := ServerURL(credentials.Server, config.UseTLS)

	opts := []ldap.DialOpt{ldap.DialWithDialer(&net.Dialer{Timeout: config.Timeout})}
	if config.UseTLS {
		opts = append(opts, ldap.DialWithTLSConfig(&tls.Config{
			ServerName:         hostOf(credentials.Server),
			InsecureSkipVerify: config.InsecureSkipVerify,
		}))
	}

	logger.Infof("Connecting to directory server, url: %s, user: %s", url, credentials.Username)
	conn, err := ldap.DialURL(url, opts...)
	if err != nil {
		return nil, errors.NewNetworkError("failed to connect to directory server", err).WithContext("url", url)
	}
	if config.Timeout > 0 {
		conn.SetTimeout(config.Timeout)
	}

	if err := conn.Bind(credentials.Username, credentials.Password); err != nil {
		conn.Close()
		return nil, errors.NewConfigurationError("directory bind failed, check user and password", err).WithContext("user", credentials.Username)
	}

	return newClient(conn, domain, logger), nil
}

func (c *Client) Close() error {
	return c.conn.Close()
}

// DomainControllers returns the DNS host names of every domain controller.
func (c *Client) DomainControllers() ([]string, error) {
	request := ldap.NewSearchRequest(
		c.baseDN,
		ldap.ScopeWholeSubtree, ldap.NeverDerefAliases, 0, 0, false,
		domainControllerFilter,
		[]string{"dNSHostName", "cn"},
		nil,
	)

	result, err := c.conn.SearchWithPaging(request, searchPageSize)
	if err != nil {
		return nil, errors.NewNetworkError("domain controller search failed", err).WithContext("base_dn", c.baseDN)
	}

	hosts := make([]string, 0, len(result.Entries))
	for _, entry := range result.Entries {
		host := entry.GetAttributeValue("dNSHostName")
		if host == "" {
			host = entry.GetAttributeValue("cn")
		}
		if host != "" {
			hosts = append(hosts, strings.ToLower(host))
		}
	}
	c.logger.Infof("Found %d domain controller(s) under %s", len(hosts), c.baseDN)
	return hosts, nil
}

// Groups resolves group names to DN and SID. Names that do not exist are returned separately.
func (c *Client) Groups(names []string) ([]Group, []string, error) {
	var groups []Group
	var missing []string

	for _, name := range names {
		request := ldap.NewSearchRequest(
			c.baseDN,
			ldap.ScopeWholeSubtree, ldap.NeverDerefAliases, 1, 0, false,
			fmt.Sprintf("(&(objectCategory=group)(cn=%s))", ldap.EscapeFilter(name)),
			[]string{"distinguishedName", "objectSid"},
			nil,
		)

		result, err := c.conn.Search(request)
		if err != nil && !ldap.IsErrorWithCode(err, ldap.LDAPResultSizeLimitExceeded) {
			return nil, nil, errors.NewNetworkError("group search failed", err).WithContext("group", name)
		}
		if result == nil || len(result.Entries) == 0 {
			missing = append(missing, name)
			continue
		}

		entry := result.Entries[0]
		sid, err := DecodeSID(entry.GetRawAttributeValue("objectSid"))
		if err != nil {
			return nil, nil, errors.NewValidationError("malformed objectSid", err).WithContext("group", name)
		}
		groups = append(groups, Group{Name: name, DN: entry.DN, SID: sid})
	}

	return groups, missing, nil
}

// BaseDN turns "corp.example.com" into "DC=corp,DC=example,DC=com".
func BaseDN(domain string) string {
	labels := strings.Split(strings.Trim(domain, "."), ".")
	parts := make([]string, 0, len(labels))
	for _, label := range labels {
		if label != "" {
			parts = append(parts, "DC="+label)
		}
	}
	return strings.Join(parts, ",")
}

// ServerURL accepts a bare host, host:port or a full ldap:// / ldaps:// URL.
func ServerURL(server string, useTLS bool) string {
	if strings.Contains(server, "://") {
		return server
	}
	if useTLS {
		return "ldaps://" + server
	}
	return "ldap://" + server
}

func hostOf(server string) string {
	if i := strings.Index(server, "://"); i >= 0 {
		server = server[i+3:]
	}
	if host, _, err := net.SplitHostPort(server); err == nil {
		return host
	}
	return server
}

// DecodeSID renders a binary security identifier as S-R-I-S1-S2-...
func DecodeSID(raw []byte) (string, error) {
	if len(raw) < 8 {
		return "", fmt.Errorf("sid too short: %d bytes", len(raw))
	}
	revision := raw[0]
	subCount := int(raw[1])
	if len(raw) != 8+4*subCount {
		return "", fmt.Errorf("sid length %d does not match %d sub-authorities", len(raw), subCount)
	}

	var authority uint64
	for _, b := range raw[2:8] {
		authority = authority<<8 | uint64(b)
	}

	var sb strings.Builder
	fmt.Fprintf(&sb, "S-%d-%d", revision, authority)
	for i := 0; i < subCount; i++ {
		offset := 8 + 4*i
		fmt.Fprintf(&sb, "-%d", binary.LittleEndian.Uint32(raw[offset:offset+4]))
	}
	return sb.String(), nil
}
