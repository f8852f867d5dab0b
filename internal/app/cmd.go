package app

import (
	"fmt"
	"strings"
)

// Command はアプリケーションの起動モードを表す。
type Command string

const (
	// CommandServe は管理APIサーバーモードで起動することを示す。
	CommandServe Command = "serve"
	// CommandWorker はリマインダースケジューラとクリーンアップジョブを実行するワーカーモードを示す。
	CommandWorker Command = "worker"
	// CommandMigrate はデータベースマイグレーションを実行することを示す。
	CommandMigrate Command = "migrate"
	// CommandRemind はリマインダー評価を1回だけ実行することを示す。
	CommandRemind Command = "remind"
	// CommandHealthcheck はヘルスチェックを実行することを示す。
	// distroless環境でのDockerヘルスチェック用。
	CommandHealthcheck Command = "healthcheck"
)

// ParseCommand はコマンドライン引数からサブコマンドを解析する。
// 引数が空またはサポート外のコマンドの場合はCommandServeを返す。
func ParseCommand(args []string) Command {
	if len(args) == 0 {
		return CommandServe
	}

	switch Command(args[0]) {
	case CommandWorker, CommandServe, CommandMigrate, CommandRemind, CommandHealthcheck:
		return Command(args[0])
	default:
		return CommandServe
	}
}

// RemindOptions はremindサブコマンドの引数。
type RemindOptions struct {
	// OrganizationID が空の場合はリマインダー設定を持つ全組織を評価する。
	OrganizationID     string
	SkipDuplicateCheck bool
}

// ParseRemindArgs はremindサブコマンドの引数を解析する。
//
//	remind [organizationID] [--skip-duplicate-check]
func ParseRemindArgs(args []string) (RemindOptions, error) {
	var opts RemindOptions
	for _, arg := range args {
		switch {
		case arg == "--skip-duplicate-check":
			opts.SkipDuplicateCheck = true
		case strings.HasPrefix(arg, "-"):
			return RemindOptions{}, fmt.Errorf("unknown flag for remind: %s", arg)
		case opts.OrganizationID == "":
			opts.OrganizationID = arg
		default:
			return RemindOptions{}, fmt.Errorf("remind accepts at most one organization ID: %s", arg)
		}
	}
	if opts.SkipDuplicateCheck && opts.OrganizationID == "" {
		return RemindOptions{}, fmt.Errorf("--skip-duplicate-check requires an organization ID")
	}
	return opts, nil
}
