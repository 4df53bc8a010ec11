package rbac

// Default role policy.
var RolePermissions = map[string][]string{
	"student": {
		"test:view",
		"attempt:create",
		"attempt:save",
		"attempt:submit",
		"attempt:view-own",
	},
	"teacher": {
		"test:view",
		"test:create",
		"test:edit",
		"test:publish",
		"test:recalculate",
		"attempt:view-all",
		"results:export",
	},
	"admin": {
		"*", // everything
	},
}
