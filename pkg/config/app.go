package config

import "time"

var AppVersion = "DEVELOPMENT"

const (
	AppName       = "mountwatch"
	JournalFile   = "journal.db"
	LogFile       = "mountwatch.log"
	CfgFile       = "config.toml"
	UserDir       = "user"
	NotifyTimeout = 5 * time.Second
)
