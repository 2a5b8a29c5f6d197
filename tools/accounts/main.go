package main

import (
	"chat-relay/repositories"
	"fmt"
	"log"
	"os"
	"strconv"
	"strings"

	"github.com/dgraph-io/badger/v4"
	"github.com/mama165/sdk-go/database"
	"github.com/olekukonko/tablewriter"
	"github.com/spf13/pflag"
)

func main() {
	defaultPath := os.Getenv("BADGER_FILEPATH")
	if defaultPath == "" {
		defaultPath = database.DefaultPath
	}
	dbPath := pflag.String("db", defaultPath, "Path to badger DB")
	filter := pflag.String("filter", "", "Only list usernames containing this text")
	pflag.Parse()

	db, err := openDB(*dbPath)
	if err != nil {
		log.Fatal("Error while opening Badger: ", err)
	}
	defer db.Close()

	users, err := repositories.NewUserRepository(db).ListUsers()
	if err != nil {
		log.Fatal(err)
	}

	table := tablewriter.NewWriter(os.Stdout)
	table.SetHeader([]string{"Username", "ID", "Roles", "Picture", "Created"})
	table.SetAutoWrapText(false)
	table.SetAutoFormatHeaders(true)
	table.SetHeaderAlignment(tablewriter.ALIGN_LEFT)
	table.SetAlignment(tablewriter.ALIGN_LEFT)
	table.SetCenterSeparator("")
	table.SetColumnSeparator("")
	table.SetRowSeparator("")
	table.SetHeaderLine(false)
	table.SetBorder(false)
	table.SetTablePadding("\t")

	listed := 0
	for _, user := range users {
		if *filter != "" && !strings.Contains(user.Username, strings.ToLower(*filter)) {
			continue
		}
		picture := "-"
		if len(user.ProfilePicture) > 0 {
			picture = strconv.Itoa(len(user.ProfilePicture)) + " bytes"
		}
		table.Append([]string{
			user.Username,
			user.ID,
			strings.Join(user.Roles, ","),
			picture,
			user.CreatedAt.Local().Format("2006-01-02 15:04:05"),
		})
		listed++
	}
	table.Render()
	fmt.Printf("\n%d account(s)\n", listed)
}

// openDB opens the store read-only; the lock guard is bypassed so it works next to a running server.
func openDB(path string) (*badger.DB, error) {
	opts := badger.DefaultOptions(path).
		WithReadOnly(true).
		WithLogger(nil).
		WithBypassLockGuard(true)
	return badger.Open(opts)
}
