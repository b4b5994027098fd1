package main

import (
	"github.com/core-tools/hsu-watchad/pkg/config"
	"github.com/core-tools/hsu-watchad/pkg/lifecycle"

	flags "github.com/jessevdk/go-flags"
)

type flagOptions struct {
	Install bool `long:"install" description:"install the engine; requires --domain, --ldap-server, --domain-user and --domain-passwd"`
	Check   bool `long:"check" description:"check the engine environment"`
	Start   bool `long:"start" description:"check the environment, then start the engine"`
	Restart bool `long:"restart" description:"stop, then start the engine"`
	Stop    bool `long:"stop" description:"stop the engine and shut the supervisor down"`
	Status  bool `long:"status" description:"print the supervisor status of the engine"`

	Domain     string `short:"d" long:"domain" description:"install: domain FQDN"`
	LDAPServer string `short:"s" long:"ldap-server" description:"install: directory server host or address"`
	Username   string `short:"u" long:"domain-user" description:"install: domain user"`
	Password   string `short:"p" long:"domain-passwd" description:"install: domain user password"`

	Root       string `long:"root" description:"engine root directory (default: the directory of this executable)"`
	ConfigFile string `long:"config" description:"controller config file (default: <root>/watchad.yaml)"`
}

func newParser(opts *flagOptions) *flags.Parser {
	parser := flags.NewParser(opts, flags.HelpFlag)
	parser.Name = "watchadctl"
	parser.Usage = "[--install -d DOMAIN -s SERVER -u USER -p PASSWORD | --check | --start | --restart | --stop | --status]"
	return parser
}

// request turns the parsed flags into a controller request.
func (opts flagOptions) request() (lifecycle.Request, error) {
	verb, err := lifecycle.SelectVerb(map[lifecycle.Verb]bool{
		lifecycle.VerbInstall: opts.Install,
		lifecycle.VerbCheck:   opts.Check,
		lifecycle.VerbStart:   opts.Start,
		lifecycle.VerbRestart: opts.Restart,
		lifecycle.VerbStop:    opts.Stop,
		lifecycle.VerbStatus:  opts.Status,
	})
	if err != nil {
		return lifecycle.Request{}, err
	}

	request := lifecycle.Request{Verb: verb}
	if verb == lifecycle.VerbInstall {
		request.Installation = config.InstallationConfig{
			Domain:     opts.Domain,
			LDAPServer: opts.LDAPServer,
			Username:   opts.Username,
			Password:   opts.Password,
		}
	}
	return request, nil
}
