package roles

import (
	"fmt"
)

// Role identifies an authorization role.
type Role string

// Global roles govern site-wide actions.
const (
	CEO           Role = "ceo"
	Administrator Role = "administrator"
	Moderator     Role = "moderator"
	Editor        Role = "editor"
)

// Content roles govern a single content vertical.
const (
	ShopAdmin     Role = "shop_admin"
	ShopEditor    Role = "shop_editor"
	ServiceAdmin  Role = "service_admin"
	ServiceEditor Role = "service_editor"
	SchoolAdmin   Role = "school_admin"
	SchoolEditor  Role = "school_editor"
	PostAdmin     Role = "post_admin"
	PostEditor    Role = "post_editor"
)

// Permission is an atomic capability checked against a role's fixed set.
type Permission string

const (
	UsersView         Permission = "users.view"
	UsersEdit         Permission = "users.edit"
	UsersDelete       Permission = "users.delete"
	UsersBan          Permission = "users.ban"
	UsersRoles        Permission = "users.roles"
	ContentView       Permission = "content.view"
	ContentCreate     Permission = "content.create"
	ContentEdit       Permission = "content.edit"
	ContentDelete     Permission = "content.delete"
	ContentModerate   Permission = "content.moderate"
	ReportsView       Permission = "reports.view"
	ReportsResolve    Permission = "reports.resolve"
	SettingsView      Permission = "settings.view"
	SettingsEdit      Permission = "settings.edit"
	PermissionsManage Permission = "permissions.manage"
)

// Category partitions roles by the vertical they govern.
type Category string

const (
	CategoryGlobal  Category = "global"
	CategoryShop    Category = "shop"
	CategoryService Category = "service"
	CategorySchool  Category = "school"
	CategoryPost    Category = "post"
)

// Definition describes a role, its permission set and who may grant it.
type Definition struct {
	ID              Role
	Name            string
	Description     string
	Category        Category
	Permissions     []Permission
	CanBeAssignedBy []Role
}

var contentAdminPermissions = []Permission{
	ContentView, ContentCreate, ContentEdit, ContentDelete, ContentModerate,
}

var contentEditorPermissions = []Permission{
	ContentView, ContentCreate, ContentEdit,
}

// Table is closed and fixed at deploy time. No runtime mutation.
var Table = map[Role]Definition{
	CEO: {
		ID:          CEO,
		Name:        "CEO",
		Description: "Полный доступ ко всем функциям сайта",
		Category:    CategoryGlobal,
		Permissions: []Permission{
			UsersView, UsersEdit, UsersDelete, UsersBan, UsersRoles,
			ContentView, ContentCreate, ContentEdit, ContentDelete, ContentModerate,
			ReportsView, ReportsResolve,
			SettingsView, SettingsEdit,
			PermissionsManage,
		},
		CanBeAssignedBy: []Role{CEO},
	},
	Administrator: {
		ID:          Administrator,
		Name:        "Администратор",
		Description: "Управление пользователями и контентом",
		Category:    CategoryGlobal,
		Permissions: []Permission{
			UsersView, UsersEdit, UsersBan, UsersRoles,
			ContentView, ContentCreate, ContentEdit, ContentDelete, ContentModerate,
			ReportsView, ReportsResolve,
			SettingsView,
		},
		CanBeAssignedBy: []Role{CEO},
	},
	Moderator: {
		ID:          Moderator,
		Name:        "Модератор",
		Description: "Модерация контента и жалоб",
		Category:    CategoryGlobal,
		Permissions: []Permission{
			UsersView, UsersBan,
			ContentView, ContentModerate,
			ReportsView, ReportsResolve,
		},
		CanBeAssignedBy: []Role{CEO, Administrator},
	},
	Editor: {
		ID:              Editor,
		Name:            "Редактор",
		Description:     "Создание и редактирование контента",
		Category:        CategoryGlobal,
		Permissions:     contentEditorPermissions,
		CanBeAssignedBy: []Role{CEO, Administrator},
	},
	ShopAdmin: {
		ID:              ShopAdmin,
		Name:            "Гл. Администратор магазинов",
		Description:     "Полное управление магазинами",
		Category:        CategoryShop,
		Permissions:     contentAdminPermissions,
		CanBeAssignedBy: []Role{CEO, Administrator},
	},
	ShopEditor: {
		ID:              ShopEditor,
		Name:            "Редактор магазинов",
		Description:     "Создание и редактирование магазинов",
		Category:        CategoryShop,
		Permissions:     contentEditorPermissions,
		CanBeAssignedBy: []Role{CEO, Administrator},
	},
	ServiceAdmin: {
		ID:              ServiceAdmin,
		Name:            "Гл. Администратор сервисов",
		Description:     "Полное управление сервисами",
		Category:        CategoryService,
		Permissions:     contentAdminPermissions,
		CanBeAssignedBy: []Role{CEO, Administrator},
	},
	ServiceEditor: {
		ID:              ServiceEditor,
		Name:            "Редактор сервисов",
		Description:     "Создание и редактирование сервисов",
		Category:        CategoryService,
		Permissions:     contentEditorPermissions,
		CanBeAssignedBy: []Role{CEO, Administrator},
	},
	SchoolAdmin: {
		ID:              SchoolAdmin,
		Name:            "Гл. Администратор мотошкол",
		Description:     "Полное управление мотошколами",
		Category:        CategorySchool,
		Permissions:     contentAdminPermissions,
		CanBeAssignedBy: []Role{CEO, Administrator},
	},
	SchoolEditor: {
		ID:              SchoolEditor,
		Name:            "Редактор мотошкол",
		Description:     "Создание и редактирование мотошкол",
		Category:        CategorySchool,
		Permissions:     contentEditorPermissions,
		CanBeAssignedBy: []Role{CEO, Administrator},
	},
	PostAdmin: {
		ID:              PostAdmin,
		Name:            "Гл. Администратор байк-постов",
		Description:     "Полное управление байк-постами",
		Category:        CategoryPost,
		Permissions:     contentAdminPermissions,
		CanBeAssignedBy: []Role{CEO, Administrator},
	},
	PostEditor: {
		ID:              PostEditor,
		Name:            "Редактор байк-постов",
		Description:     "Создание и редактирование байк-постов",
		Category:        CategoryPost,
		Permissions:     contentEditorPermissions,
		CanBeAssignedBy: []Role{CEO, Administrator},
	},
}

// PermissionLabels maps permissions to their display names.
var PermissionLabels = map[Permission]string{
	UsersView:         "Просмотр пользователей",
	UsersEdit:         "Редактирование пользователей",
	UsersDelete:       "Удаление пользователей",
	UsersBan:          "Блокировка пользователей",
	UsersRoles:        "Управление ролями пользователей",
	ContentView:       "Просмотр контента",
	ContentCreate:     "Создание контента",
	ContentEdit:       "Редактирование контента",
	ContentDelete:     "Удаление контента",
	ContentModerate:   "Модерация контента",
	ReportsView:       "Просмотр жалоб",
	ReportsResolve:    "Обработка жалоб",
	SettingsView:      "Просмотр настроек",
	SettingsEdit:      "Изменение настроек",
	PermissionsManage: "Управление разрешениями",
}

// Known reports whether role exists in the table.
func Known(role Role) bool {
	_, ok := Table[role]
	return ok
}

// HasPermission reports whether the role's fixed set contains the permission.
func HasPermission(role Role, perm Permission) bool {
	def, ok := Table[role]
	if !ok {
		return false
	}
	for _, p := range def.Permissions {
		if p == perm {
			return true
		}
	}
	return false
}

// CanAssign reports whether grantor may grant the target role.
func CanAssign(grantor, target Role) bool {
	def, ok := Table[target]
	if !ok {
		return false
	}
	for _, r := range def.CanBeAssignedBy {
		if r == grantor {
			return true
		}
	}
	return false
}

// Normalize maps the role column stored on a user to a table role. Plain
// members carry "user", which grants nothing; the legacy "admin" value is an
// alias for administrator.
func Normalize(stored string) Role {
	switch stored {
	case "admin":
		return Administrator
	case "user", "":
		return ""
	default:
		return Role(stored)
	}
}

// IsAdminRole reports whether the stored role unlocks the admin panel.
func IsAdminRole(stored string) bool {
	switch Normalize(stored) {
	case CEO, Administrator, Moderator:
		return true
	default:
		return false
	}
}

// Validate asserts the table's closure invariants. It is run at startup and
// exercised by tests so a bad edit cannot ship.
func Validate() error {
	for id, def := range Table {
		if def.ID != id {
			return fmt.Errorf("role %q: id mismatch %q", id, def.ID)
		}
		for _, p := range def.Permissions {
			if _, ok := PermissionLabels[p]; !ok {
				return fmt.Errorf("role %q: unknown permission %q", id, p)
			}
		}
		if len(def.CanBeAssignedBy) == 0 {
			return fmt.Errorf("role %q: empty canBeAssignedBy", id)
		}
		for _, grantor := range def.CanBeAssignedBy {
			if grantor != CEO && grantor != Administrator {
				return fmt.Errorf("role %q: grantor %q outside {ceo, administrator}", id, grantor)
			}
		}
	}

	ceo := Table[CEO]
	if len(ceo.CanBeAssignedBy) != 1 || ceo.CanBeAssignedBy[0] != CEO {
		return fmt.Errorf("ceo must be assignable only by ceo")
	}

	return nil
}
