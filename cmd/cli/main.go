// chaturgency - Chat Message Urgency Ranking
//
// chaturgency reads exported chat conversations and ranks their messages by
// how urgently they need an answer.
package main

import (
	"os"

	"github.com/ccollicutt/chaturgency/internal/cli"
)

func main() {
	os.Exit(cli.Execute())
}
