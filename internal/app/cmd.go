package app

// Command はアプリケーションの起動モードを表す。
type Command string

const (
	// CommandServe はHTTPサーバーモードで起動することを示す。
	CommandServe Command = "serve"
	// CommandTUI はターミナルUIモードで起動することを示す。
	CommandTUI Command = "tui"
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

	switch args[0] {
	case "tui":
		return CommandTUI
	case "healthcheck":
		return CommandHealthcheck
	default:
		return CommandServe
	}
}
