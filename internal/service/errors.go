package service

import "errors"

var (
	// ErrInvalidArgument 经验值为负或会溢出
	ErrInvalidArgument = errors.New("invalid argument")
	// ErrInvalidRules 等级表/成就目录/主题目录配置非法
	ErrInvalidRules = errors.New("invalid reward rules")
	// ErrUnknownTheme 主题不存在
	ErrUnknownTheme = errors.New("unknown theme")
	// ErrThemeLocked 当前等级未解锁该主题
	ErrThemeLocked = errors.New("theme locked")
)
