package root

import (
	"github.com/novalearn-io/novalearn/apps/cli/cmd/bootstrapcmd"
	"github.com/novalearn-io/novalearn/apps/cli/cmd/migratecmd"
	"github.com/novalearn-io/novalearn/apps/cli/cmd/tenantcmd"
)

func init() {
	Root().AddCommand(bootstrapcmd.Command())
	Root().AddCommand(tenantcmd.Command())
	Root().AddCommand(migratecmd.Command())
}
