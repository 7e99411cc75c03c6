package denylist

// DefaultPatterns contains the hardcoded entries. Funds sent to these
// addresses cannot be recovered.
var DefaultPatterns = Patterns{
	Addresses: []Entry{
		{Address: "11111111111111111111111111111111", Label: "system program (funds are unrecoverable)"},
		{Address: "1nc1nerator11111111111111111111111111111111", Label: "incinerator (funds are burned)"},
		{Address: "TokenkegQfeZyiNwAJbNbGKPFXCWuBvf9Ss623VQ5DA", Label: "token program (not a wallet)"},
	},
}
