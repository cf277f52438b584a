package constants

// Well-known token mint addresses.
const (
	MintSOL  = "So11111111111111111111111111111111111111112"
	MintUSDC = "EPjFWdd5AufqSSqeM2qN1xzybapC8G4wEGGkZwyTDt1v"
	MintUSDT = "Es9vMFrzaCERmJfrF4H2FYD4KCoNkY11McCe8BenwNYB"
	MintMSOL = "mSoLzYCxHdYgdzU16g5QSh3i5K3z3KZK7ytfqcJm7So"
	MintJUP  = "JUPyiwrYJFskUPiHa7hkeR8VUtAeFoSYbKedZNsDvCN"
	MintBONK = "DezXAZ8z7PnrnRJjz3wXBoRgixCa6xjnB7YaB1pPB263"
	MintRAY  = "4k3Dyjzvzp8eMZWUXbBCjEvwSkkk59S5iCNLY3QrkX6R"
)

// Token mint addresses to symbols, for logs and API responses.
var TokenSymbols = map[string]string{
	MintSOL:  "SOL",
	MintUSDC: "USDC",
	MintUSDT: "USDT",
	MintMSOL: "mSOL",
	MintJUP:  "JUP",
	MintBONK: "BONK",
	MintRAY:  "RAY",
}

// Symbol returns a human-readable symbol for a mint, falling back to a
// shortened address.
func Symbol(mint string) string {
	if s, ok := TokenSymbols[mint]; ok {
		return s
	}
	if len(mint) > 8 {
		return mint[:4] + ".." + mint[len(mint)-4:]
	}
	return mint
}

// Program addresses the pipeline touches.
const (
	JupiterProgram  = "JUP6LkbZbjS1jKKwapdHNy74zcZ3tLUZoi5QNyVTaV4"
	SolendProgram   = "So1endDq2YkqhipRh3WViPa8hdiSpxWy6z3Z6tMCpAo"
	MarginfiProgram = "MFv2hWf31Z9kbCa1snEPYctwafyhdvnV7FZnsebVacA"
)
