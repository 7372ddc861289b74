// Package sqlassets embeds the SQL and schema assets shipped with the binary
// so deployments stay self-contained.
package sqlassets

import "embed"

// RegistryMigrations holds the versioned goose migrations for the shared
// registry schema (tenant directory and global identities).
//
//go:embed migrations/*.sql
var RegistryMigrations embed.FS

// QuizQuestionsSchema is the JSON Schema that quiz question payloads are
// validated against before they are stored.
//
//go:embed schema/quiz_questions.schema.json
var QuizQuestionsSchema string

//go:embed schema/tenant/01_profiles.sql
var tenantProfilesSQL string

//go:embed schema/tenant/02_roles.sql
var tenantRolesSQL string

//go:embed schema/tenant/03_courses.sql
var tenantCoursesSQL string

//go:embed schema/tenant/04_enrollments.sql
var tenantEnrollmentsSQL string

//go:embed schema/tenant/05_assignments.sql
var tenantAssignmentsSQL string

//go:embed schema/tenant/06_quizzes.sql
var tenantQuizzesSQL string

//go:embed schema/tenant/07_submissions.sql
var tenantSubmissionsSQL string

//go:embed schema/tenant/08_grades.sql
var tenantGradesSQL string

//go:embed schema/tenant/09_notifications.sql
var tenantNotificationsSQL string

//go:embed schema/tenant/10_files.sql
var tenantFilesSQL string

// TenantAsset pairs a human-readable step name with the DDL it applies.
// The name shows up in provisioning errors and logs.
type TenantAsset struct {
	Name string
	SQL  string
}

// TenantBaseline returns the tenant-local DDL in dependency order:
// independent tables first, then tables referencing them. Every statement
// uses IF NOT EXISTS / ON CONFLICT guards so re-application is harmless.
func TenantBaseline() []TenantAsset {
	return []TenantAsset{
		{Name: "profiles", SQL: tenantProfilesSQL},
		{Name: "roles", SQL: tenantRolesSQL},
		{Name: "courses", SQL: tenantCoursesSQL},
		{Name: "enrollments", SQL: tenantEnrollmentsSQL},
		{Name: "assignments", SQL: tenantAssignmentsSQL},
		{Name: "quizzes", SQL: tenantQuizzesSQL},
		{Name: "submissions", SQL: tenantSubmissionsSQL},
		{Name: "grades", SQL: tenantGradesSQL},
		{Name: "notifications", SQL: tenantNotificationsSQL},
		{Name: "files", SQL: tenantFilesSQL},
	}
}
