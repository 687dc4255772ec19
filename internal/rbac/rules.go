package rbac

// Simple default policy. Students sit exams; admins run them.
var RolePermissions = map[string][]string{
	"student": {
		"exam:view",
		"attempt:create",
		"attempt:save",
		"attempt:submit",
		"attempt:view-own",
	},
	"admin": {
		"*", // everything, including exam:create and key:ingest
	},
}
