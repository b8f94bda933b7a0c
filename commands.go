package ftpserver

// commandRegistry is the fixed-capacity (well under 64 entries) table
// mapping uppercase verb to handler + pre-hook. It's
// shared across Server instances since command semantics don't vary
// between them, matching the teacher library's commandsMap.
var commandRegistry = map[string]*commandDescription{ //nolint:gochecknoglobals
	"USER": {Open: true, Fn: (*Session).handleUSER},
	"PASS": {Open: true, Fn: (*Session).handlePASS},
	"ACCT": {Fn: (*Session).handleACCT},
	"QUIT": {Open: true, SpecialAction: true, Fn: (*Session).handleQUIT},
	"REIN": {Open: true, Fn: (*Session).handleREIN},

	"NOOP": {Open: true, Fn: (*Session).handleNOOP},
	"SYST": {Open: true, Fn: (*Session).handleSYST},
	"FEAT": {Open: true, Fn: (*Session).handleFEAT},
	"STAT": {SpecialAction: true, Fn: (*Session).handleSTAT},
	"HELP": {Fn: (*Session).handleHELP},
	"SITE": {Fn: (*Session).handleSITE},
	"ABOR": {SpecialAction: true, Fn: (*Session).handleABOR},

	"CWD":  {PreHook: preHookClearAll, Fn: (*Session).handleCWD},
	"CDUP": {PreHook: preHookClearAll, Fn: (*Session).handleCDUP},
	"PWD":  {Fn: (*Session).handlePWD},
	"MKD":  {PreHook: preHookClearAll, Fn: (*Session).handleMKD},
	"RMD":  {PreHook: preHookClearAll, Fn: (*Session).handleRMD},
	"SMNT": {Fn: (*Session).handleSMNT},

	"TYPE": {PreHook: preHookClearAll, Fn: (*Session).handleTYPE},
	"MODE": {PreHook: preHookClearAll, Fn: (*Session).handleMODE},
	"STRU": {PreHook: preHookClearAll, Fn: (*Session).handleSTRU},
	"PORT": {PreHook: preHookClearAll, Fn: (*Session).handlePORT},
	"PASV": {PreHook: preHookClearAll, Fn: (*Session).handlePASV},

	"ALLO": {Fn: (*Session).handleALLO},
	"REST": {PreHook: preHookClearRename, Fn: (*Session).handleREST},
	"STOR": {TransferRelated: true, PreHook: preHookClearRename, Fn: (*Session).handleSTOR},
	"STOU": {Fn: (*Session).handleSTOU},
	"APPE": {TransferRelated: true, PreHook: preHookClearAll, Fn: (*Session).handleAPPE},
	"RETR": {TransferRelated: true, PreHook: preHookClearRename, Fn: (*Session).handleRETR},
	"DELE": {PreHook: preHookClearAll, Fn: (*Session).handleDELE},
	"RNFR": {PreHook: preHookClearAll, Fn: (*Session).handleRNFR},
	"RNTO": {PreHook: preHookClearRestart, Fn: (*Session).handleRNTO},

	"LIST": {TransferRelated: true, PreHook: preHookClearAll, Fn: (*Session).handleLIST},
	"NLST": {TransferRelated: true, PreHook: preHookClearAll, Fn: (*Session).handleNLST},

	"SIZE": {Fn: (*Session).handleSIZE},
	"MDTM": {Fn: (*Session).handleMDTM},
}
