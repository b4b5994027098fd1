package directory

import (
	stdErrors "errors"
	"testing"
	"time"

	"github.com/core-tools/hsu-watchad/pkg/errors"
	"github.com/core-tools/hsu-watchad/pkg/logging"

	"github.com/go-ldap/ldap/v3"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestBaseDN(t *testing.T) {
	assert.Equal(t, "DC=corp,DC=example,DC=com", BaseDN("corp.example.com"))
	assert.Equal(t, "DC=corp,DC=example,DC=com", BaseDN("corp.example.com."))
	assert.Equal(t, "DC=local", BaseDN("local"))
}

func TestServerURL(t *testing.T) {
	tests := []struct {
		server string
		useTLS bool
		want   string
	}{
		{server: "dc01.corp.com", want: "ldap://dc01.corp.com"},
		{server: "dc01.corp.com:3268", want: "ldap://dc01.corp.com:3268"},
		{server: "dc01.corp.com", useTLS: true, want: "ldaps://dc01.corp.com"},
		{server: "ldaps://dc01.corp.com:636", want: "ldaps://dc01.corp.com:636"},
	}

	for _, tt := range tests {
		t.Run(tt.want, func(t *testing.T) {
			assert.Equal(t, tt.want, ServerURL(tt.server, tt.useTLS))
		})
	}
	assert.Equal(t, "dc01.corp.com", hostOf("ldaps://dc01.corp.com:636"))
}

func TestDecodeSID(t *testing.T) {
	// S-1-5-32-544 (BUILTIN\Administrators)
	builtinAdmins := []byte{
		0x01, 0x02,
		0x00, 0x00, 0x00, 0x00, 0x00, 0x05,
		0x20, 0x00, 0x00, 0x00,
		0x20, 0x02, 0x00, 0x00,
	}
	sid, err := DecodeSID(builtinAdmins)
	require.NoError(t, err)
	assert.Equal(t, "S-1-5-32-544", sid)

	// S-1-5-21-1004336348-1177238915-682003330-512 (Domain Admins)
	domainAdmins := []byte{
		0x01, 0x05,
		0x00, 0x00, 0x00, 0x00, 0x00, 0x05,
		0x15, 0x00, 0x00, 0x00,
		0xdc, 0xf4, 0xdc, 0x3b,
		0x83, 0x3d, 0x2b, 0x46,
		0x82, 0x8b, 0xa6, 0x28,
		0x00, 0x02, 0x00, 0x00,
	}
	sid, err = DecodeSID(domainAdmins)
	require.NoError(t, err)
	assert.Equal(t, "S-1-5-21-1004336348-1177238915-682003330-512", sid)

	_, err = DecodeSID([]byte{0x01})
	assert.Error(t, err)
	_, err = DecodeSID(builtinAdmins[:12])
	assert.Error(t, err)
}

func TestDial_Unreachable(t *testing.T) {
	_, err := Dial(Config{Timeout: 200 * time.Millisecond}, Credentials{Server: "127.0.0.1:1", Username: "u", Password: "p"}, "corp.example.com", logging.NewNopLogger())

	require.Error(t, err)
	assert.True(t, errors.IsNetworkError(err))
}

// fakeConn answers searches from canned results; every other ldap.Client
// method panics through the nil embedded interface.
type fakeConn struct {
	ldap.Client
	paged    func(request *ldap.SearchRequest) (*ldap.SearchResult, error)
	search   func(request *ldap.SearchRequest) (*ldap.SearchResult, error)
	requests []*ldap.SearchRequest
	closed   bool
}

func (f *fakeConn) SearchWithPaging(request *ldap.SearchRequest, pagingSize uint32) (*ldap.SearchResult, error) {
	f.requests = append(f.requests, request)
	return f.paged(request)
}

func (f *fakeConn) Search(request *ldap.SearchRequest) (*ldap.SearchResult, error) {
	f.requests = append(f.requests, request)
	return f.search(request)
}

func (f *fakeConn) Close() error {
	f.closed = true
	return nil
}

func entries(list ...*ldap.Entry) *ldap.SearchResult {
	return &ldap.SearchResult{Entries: list}
}

var domainAdminsSID = []byte{
	0x01, 0x05,
	0x00, 0x00, 0x00, 0x00, 0x00, 0x05,
	0x15, 0x00, 0x00, 0x00,
	0xdc, 0xf4, 0xdc, 0x3b,
	0x83, 0x3d, 0x2b, 0x46,
	0x82, 0x8b, 0xa6, 0x28,
	0x00, 0x02, 0x00, 0x00,
}

func TestClient_DomainControllers(t *testing.T) {
	tests := []struct {
		name     string
		result   *ldap.SearchResult
		err      error
		expected []string
		wantErr  bool
	}{
		{
			name: "dns_host_name_lowercased",
			result: entries(
				ldap.NewEntry("CN=DC01,OU=Domain Controllers,DC=corp,DC=example,DC=com", map[string][]string{
					"dNSHostName": {"DC01.Corp.Example.com"},
					"cn":          {"DC01"},
				}),
				ldap.NewEntry("CN=DC02,OU=Domain Controllers,DC=corp,DC=example,DC=com", map[string][]string{
					"dNSHostName": {"dc02.corp.example.com"},
				}),
			),
			expected: []string{"dc01.corp.example.com", "dc02.corp.example.com"},
		},
		{
			name: "falls_back_to_cn",
			result: entries(ldap.NewEntry("CN=DC03,OU=Domain Controllers,DC=corp,DC=example,DC=com", map[string][]string{
				"cn": {"DC03"},
			})),
			expected: []string{"dc03"},
		},
		{
			name: "entry_without_names_skipped",
			result: entries(
				ldap.NewEntry("CN=X,DC=corp,DC=example,DC=com", map[string][]string{}),
				ldap.NewEntry("CN=DC01,DC=corp,DC=example,DC=com", map[string][]string{"dNSHostName": {"dc01.corp.example.com"}}),
			),
			expected: []string{"dc01.corp.example.com"},
		},
		{name: "none", result: entries(), expected: []string{}},
		{name: "search_error", err: ldap.NewError(ldap.LDAPResultBusy, stdErrors.New("busy")), wantErr: true},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			conn := &fakeConn{paged: func(*ldap.SearchRequest) (*ldap.SearchResult, error) {
				return tt.result, tt.err
			}}
			client := newClient(conn, "corp.example.com", logging.NewNopLogger())

			hosts, err := client.DomainControllers()

			if tt.wantErr {
				require.Error(t, err)
				assert.True(t, errors.IsNetworkError(err))
				return
			}
			require.NoError(t, err)
			assert.Equal(t, tt.expected, hosts)
			require.Len(t, conn.requests, 1)
			assert.Equal(t, "DC=corp,DC=example,DC=com", conn.requests[0].BaseDN)
			assert.Equal(t, domainControllerFilter, conn.requests[0].Filter)
		})
	}
}

func TestClient_Groups(t *testing.T) {
	directoryGroups := map[string]*ldap.Entry{
		"(&(objectCategory=group)(cn=Domain Admins))": ldap.NewEntry("CN=Domain Admins,CN=Users,DC=corp,DC=example,DC=com", map[string][]string{
			"objectSid": {string(domainAdminsSID)},
		}),
		"(&(objectCategory=group)(cn=Broken))": ldap.NewEntry("CN=Broken,CN=Users,DC=corp,DC=example,DC=com", map[string][]string{
			"objectSid": {string(domainAdminsSID[:10])},
		}),
	}
	sizeLimited := "(&(objectCategory=group)(cn=Schema Admins))"
	search := func(request *ldap.SearchRequest) (*ldap.SearchResult, error) {
		if request.Filter == sizeLimited {
			return entries(ldap.NewEntry("CN=Schema Admins,CN=Users,DC=corp,DC=example,DC=com", map[string][]string{
				"objectSid": {string(domainAdminsSID)},
			})), ldap.NewError(ldap.LDAPResultSizeLimitExceeded, stdErrors.New("size limit exceeded"))
		}
		if entry, ok := directoryGroups[request.Filter]; ok {
			return entries(entry), nil
		}
		return entries(), nil
	}

	t.Run("found_and_missing", func(t *testing.T) {
		conn := &fakeConn{search: search}
		client := newClient(conn, "corp.example.com", logging.NewNopLogger())

		groups, missing, err := client.Groups([]string{"Domain Admins", "DnsAdmins", "Schema Admins", "Key Admins"})

		require.NoError(t, err)
		assert.Equal(t, []Group{
			{Name: "Domain Admins", DN: "CN=Domain Admins,CN=Users,DC=corp,DC=example,DC=com", SID: "S-1-5-21-1004336348-1177238915-682003330-512"},
			{Name: "Schema Admins", DN: "CN=Schema Admins,CN=Users,DC=corp,DC=example,DC=com", SID: "S-1-5-21-1004336348-1177238915-682003330-512"},
		}, groups)
		assert.Equal(t, []string{"DnsAdmins", "Key Admins"}, missing)
		require.Len(t, conn.requests, 4)
		assert.Equal(t, 1, conn.requests[0].SizeLimit)
	})

	t.Run("filter_is_escaped", func(t *testing.T) {
		conn := &fakeConn{search: search}
		client := newClient(conn, "corp.example.com", logging.NewNopLogger())

		_, missing, err := client.Groups([]string{"Admins*)(cn=*"})

		require.NoError(t, err)
		assert.Equal(t, []string{"Admins*)(cn=*"}, missing)
		assert.Equal(t, `(&(objectCategory=group)(cn=Admins\2a\29\28cn=\2a))`, conn.requests[0].Filter)
	})

	t.Run("malformed_sid", func(t *testing.T) {
		client := newClient(&fakeConn{search: search}, "corp.example.com", logging.NewNopLogger())

		_, _, err := client.Groups([]string{"Broken"})

		require.Error(t, err)
		assert.True(t, errors.IsValidationError(err))
	})

	t.Run("search_error", func(t *testing.T) {
		conn := &fakeConn{search: func(*ldap.SearchRequest) (*ldap.SearchResult, error) {
			return nil, ldap.NewError(ldap.LDAPResultUnavailable, stdErrors.New("unavailable"))
		}}
		client := newClient(conn, "corp.example.com", logging.NewNopLogger())

		_, _, err := client.Groups([]string{"Domain Admins"})

		require.Error(t, err)
		assert.True(t, errors.IsNetworkError(err))
	})
}

func TestClient_Close(t *testing.T) {
	conn := &fakeConn{}
	require.NoError(t, newClient(conn, "corp.example.com", logging.NewNopLogger()).Close())
	assert.True(t, conn.closed)
}
