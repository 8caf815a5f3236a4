package root

import (
	"github.com/sukuu-hq/sukuu/apps/cli/cmd/bootstrap"
	"github.com/sukuu-hq/sukuu/apps/cli/cmd/school"
	"github.com/sukuu-hq/sukuu/apps/cli/cmd/user"
)

func init() {
	Root().AddCommand(bootstrap.Command())
	Root().AddCommand(school.Command())
	Root().AddCommand(user.Command())
}
