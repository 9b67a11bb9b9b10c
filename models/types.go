package models

// UserRole 用户角色枚举
type UserRole string

const (
	UserRoleSUPER_ADMIN       UserRole = "SUPER_ADMIN"       // 超级管理员
	UserRoleFACTORY_SALES     UserRole = "FACTORY_SALES"     // 原厂销售
	UserRoleAGENT             UserRole = "AGENT"             // 代理商
	UserRoleINVENTORY_MANAGER UserRole = "INVENTORY_MANAGER" // 库存管理员
)
