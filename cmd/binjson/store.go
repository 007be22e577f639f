package main

import (
	"bytes"
	"encoding/json"
	"fmt"

	"github.com/alecthomas/kingpin/v2"
	"github.com/pkg/errors"

	"github.com/Neumenon/binjson/binjson"
	"github.com/Neumenon/binjson/store"
)

// Store subcommands keep JSON at the edges: put parses JSON into the
// store's binary form, get renders it back out.

type storePutCommand struct {
	db   *string
	key  *string
	file *string
}

func (cmd *storePutCommand) run(c *kingpin.ParseContext) error {
	data, err := readInput(*cmd.file)
	if err != nil {
		return errors.Wrap(err, "read input")
	}
	v, err := binjson.FromJSON(data)
	if err != nil {
		return errors.Wrap(err, "parse JSON")
	}

	s, err := store.Open(*cmd.db, nil)
	if err != nil {
		return err
	}
	defer s.Close()

	return s.Put(*cmd.key, v)
}

type storeGetCommand struct {
	db  *string
	key *string
}

func (cmd *storeGetCommand) run(c *kingpin.ParseContext) error {
	s, err := store.Open(*cmd.db, nil)
	if err != nil {
		return err
	}
	defer s.Close()

	v, err := s.Get(*cmd.key)
	if err != nil {
		return err
	}

	js, err := binjson.ToJSON(v)
	if err != nil {
		return errors.Wrap(err, "convert to JSON")
	}
	var buf bytes.Buffer
	if err := json.Indent(&buf, js, "", "  "); err != nil {
		return errors.Wrap(err, "indent JSON")
	}
	buf.WriteByte('\n')
	return writeOutput("", buf.Bytes())
}

type storeLsCommand struct {
	db *string
}

func (cmd *storeLsCommand) run(c *kingpin.ParseContext) error {
	s, err := store.Open(*cmd.db, nil)
	if err != nil {
		return err
	}
	defer s.Close()

	keys, err := s.List()
	if err != nil {
		return err
	}
	for _, k := range keys {
		dig, err := s.Digest(k)
		if err != nil {
			return err
		}
		fmt.Printf("%016x  %s\n", dig, k)
	}
	return nil
}

type storeRmCommand struct {
	db  *string
	key *string
}

func (cmd *storeRmCommand) run(c *kingpin.ParseContext) error {
	s, err := store.Open(*cmd.db, nil)
	if err != nil {
		return err
	}
	defer s.Close()

	return s.Delete(*cmd.key)
}

func addStoreCommands(app *kingpin.Application) {
	st := app.Command("store", "Operate on a persistent value store.")
	db := st.Flag("db", "Store database file.").Default("binjson.db").String()

	put := &storePutCommand{db: db}
	putCmd := st.Command("put", "Store a JSON document under a key.").Action(put.run)
	put.key = putCmd.Arg("key", "Key to store under.").Required().String()
	put.file = putCmd.Arg("file", "JSON input file (default stdin).").String()

	get := &storeGetCommand{db: db}
	getCmd := st.Command("get", "Print a stored value as JSON.").Action(get.run)
	get.key = getCmd.Arg("key", "Key to fetch.").Required().String()

	ls := &storeLsCommand{db: db}
	st.Command("ls", "List stored keys with their digests.").Action(ls.run)

	rm := &storeRmCommand{db: db}
	rmCmd := st.Command("rm", "Remove a stored value.").Action(rm.run)
	rm.key = rmCmd.Arg("key", "Key to remove.").Required().String()
}
