package main

import (
	"bytes"
	"encoding/json"
	"fmt"
	"io"
	"log"
	"os"
	"os/signal"

	"github.com/hashicorp/go-hclog"
	"github.com/spf13/cobra"
	"github.com/spf13/pflag"
	"github.com/tcriess/lightspeed-meet/config"
	"github.com/tcriess/lightspeed-meet/globals"
	"github.com/tcriess/lightspeed-meet/persistence"
	"github.com/tcriess/lightspeed-meet/types"
	"golang.org/x/crypto/bcrypt"
)

// A very simple CLI tool for the administration of lightspeed-meet meetings and host users.

var (
	configPath = pflag.StringP("config", "c", "", "path to config file or directory")
)

func main() {
	log.SetFlags(0)

	c := make(chan os.Signal, 1)
	signal.Notify(c, os.Interrupt)

	go func() {
		<-c
		log.Fatal("interrupted!")
	}()

	flagSet := config.GetFlagSet()
	pflag.CommandLine.AddFlagSet(flagSet)

	pflag.Parse()

	globalConfig, err := config.ReadConfiguration(*configPath, flagSet)
	if err != nil {
		panic(err)
	}

	globals.AppLogger.SetLevel(hclog.LevelFromString(globalConfig.LogLevel))

	persister, err := persistence.NewPersister(globalConfig)
	if err != nil {
		panic(err)
	}
	defer persister.Close()

	var cmdShow = &cobra.Command{
		Use:   "show",
		Short: "Show meetings, notes or users",
		Long:  `show is for printing meeting, notes or user information.`,
		Args:  cobra.MinimumNArgs(0),
	}
	var cmdShowMeetings = &cobra.Command{
		Use:   "meetings",
		Short: "Show meetings",
		Long:  `show meetings lists all meetings without an end timestamp.`,
		Args:  cobra.MinimumNArgs(0),
		Run: func(cmd *cobra.Command, args []string) {
			meetings, err := persister.ListOpenMeetings()
			if err != nil {
				globals.AppLogger.Error("could not get meetings", "error", err)
				return
			}
			m, err := json.Marshal(meetings)
			if err != nil {
				globals.AppLogger.Error("could not marshal meetings", "error", err)
				return
			}
			fmt.Println(string(m))
		},
	}
	var cmdShowMeeting = &cobra.Command{
		Use:   "meeting [room name]",
		Short: "Show meeting",
		Long:  `show meeting prints detail information about the meeting with the given room name.`,
		Args:  cobra.MinimumNArgs(1),
		Run: func(cmd *cobra.Command, args []string) {
			meeting, err := persister.GetMeetingByRoom(args[0])
			if err != nil {
				globals.AppLogger.Error("could not get meeting", "error", err)
				return
			}
			m, err := json.Marshal(meeting)
			if err != nil {
				globals.AppLogger.Error("could not marshal meeting", "error", err)
				return
			}
			fmt.Println(string(m))
		},
	}
	var cmdShowNotes = &cobra.Command{
		Use:   "notes [room name]",
		Short: "Show notes",
		Long:  `show notes prints the latest notes document of the meeting with the given room name.`,
		Args:  cobra.MinimumNArgs(1),
		Run: func(cmd *cobra.Command, args []string) {
			meeting, err := persister.GetMeetingByRoom(args[0])
			if err != nil {
				globals.AppLogger.Error("could not get meeting", "error", err)
				return
			}
			notes, err := persister.GetLatestNotes(meeting.ID)
			if err != nil {
				globals.AppLogger.Error("could not get notes", "error", err)
				return
			}
			n, err := json.Marshal(notes)
			if err != nil {
				globals.AppLogger.Error("could not marshal notes", "error", err)
				return
			}
			fmt.Println(string(n))
		},
	}
	var cmdShowUsers = &cobra.Command{
		Use:   "users",
		Short: "Show users",
		Long:  `shows a listing of all host users.`,
		Args:  cobra.MinimumNArgs(0),
		Run: func(cmd *cobra.Command, args []string) {
			users, err := persister.GetUsers()
			if err != nil {
				globals.AppLogger.Error("could not get users", "error", err)
				return
			}
			u, err := json.Marshal(users)
			if err != nil {
				globals.AppLogger.Error("could not marshal users", "error", err)
				return
			}
			fmt.Println(string(u))
		},
	}
	var cmdShowUser = &cobra.Command{
		Use:   "user [email]",
		Short: "Show user",
		Long:  `show user prints detail information about the host user with the given email.`,
		Args:  cobra.MinimumNArgs(1),
		Run: func(cmd *cobra.Command, args []string) {
			user, err := persister.GetUserByEmail(args[0])
			if err != nil {
				globals.AppLogger.Error("could not get user", "error", err)
				return
			}
			u, err := json.Marshal(user)
			if err != nil {
				globals.AppLogger.Error("could not marshal user", "error", err)
				return
			}
			fmt.Println(string(u))
		},
	}
	var cmdDelete = &cobra.Command{
		Use:   "delete",
		Short: "delete user",
		Long:  `delete removes a host user.`,
		Args:  cobra.MinimumNArgs(0),
	}
	var cmdDeleteUser = &cobra.Command{
		Use:   "user [email]",
		Short: "Delete user",
		Long:  `delete user removes the host user with the given email.`,
		Args:  cobra.MinimumNArgs(1),
		Run: func(cmd *cobra.Command, args []string) {
			err := persister.DeleteUser(args[0])
			if err != nil {
				globals.AppLogger.Error("could not delete user", "error", err)
				return
			}
		},
	}
	var cmdSet = &cobra.Command{
		Use:   "set",
		Short: "create/update user",
		Long:  `set creates or updates a host user.`,
		Args:  cobra.MinimumNArgs(0),
	}
	var cmdSetUser = &cobra.Command{
		Use:   "user [user definition]",
		Short: "Set user",
		Long:  `set user creates or updates a host user with the given definition. If the user definition is "-", it is read from STDIN. A "password" field is hashed before storing.`,
		Args:  cobra.MinimumNArgs(1),
		Run: func(cmd *cobra.Command, args []string) {
			var r io.Reader
			if args[0] == "-" {
				r = os.Stdin
			} else {
				r = bytes.NewReader([]byte(args[0]))
			}
			dec := json.NewDecoder(r)
			def := struct {
				types.User
				Password string `json:"password"`
			}{}
			err := dec.Decode(&def)
			if err != nil {
				globals.AppLogger.Error("could not decode user", "error", err)
				return
			}
			if def.Email == "" {
				globals.AppLogger.Error("no user email")
				return
			}
			if def.Password != "" {
				hash, err := bcrypt.GenerateFromPassword([]byte(def.Password), bcrypt.DefaultCost)
				if err != nil {
					globals.AppLogger.Error("could not hash password", "error", err)
					return
				}
				def.User.PasswordHash = string(hash)
			}
			err = persister.StoreUser(&def.User)
			if err != nil {
				globals.AppLogger.Error("could not store user", "error", err)
				return
			}
		},
	}
	var rootCmd = &cobra.Command{Use: "lightspeed-meet-admin"}
	rootCmd.AddCommand(cmdShow)
	rootCmd.AddCommand(cmdDelete)
	rootCmd.AddCommand(cmdSet)
	cmdShow.AddCommand(cmdShowMeetings, cmdShowMeeting, cmdShowNotes, cmdShowUsers, cmdShowUser)
	cmdDelete.AddCommand(cmdDeleteUser)
	cmdSet.AddCommand(cmdSetUser)
	rootCmd.Execute()
}
