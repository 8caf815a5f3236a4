package sqlassets

import _ "embed"

//go:embed schema/platform/reference.sql
var ReferenceSQL string

//go:embed schema/platform/schools.sql
var SchoolsSQL string

//go:embed schema/school/users.sql
var UsersSQL string
