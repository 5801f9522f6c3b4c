package main

import (
	"fmt"

	"github.com/go-faster/errors"
	"github.com/spf13/cobra"

	"github.com/danhigham/quickchat/internal/api"
	"github.com/danhigham/quickchat/internal/domain"
)

var (
	profileName   string
	profileBio    string
	profileAvatar string
)

func init() {
	profileCmd.Flags().StringVar(&profileName, "name", "", "new full name")
	profileCmd.Flags().StringVar(&profileBio, "bio", "", "new bio")
	profileCmd.Flags().StringVar(&profileAvatar, "avatar", "", "image file to use as profile picture")

	rootCmd.AddCommand(profileCmd)
}

var profileCmd = &cobra.Command{
	Use:   "profile",
	Short: "Update your name, bio or profile picture",
	Args:  cobra.NoArgs,
	RunE: func(cmd *cobra.Command, _ []string) error {
		upd := domain.ProfileUpdate{FullName: profileName, Bio: profileBio}
		if profileAvatar != "" {
			pic, err := api.ImageDataURL(profileAvatar)
			if err != nil {
				return err
			}
			upd.ProfilePic = pic
		}
		if upd == (domain.ProfileUpdate{}) {
			return errors.New("nothing to update; pass --name, --bio or --avatar")
		}

		e, err := setup()
		if err != nil {
			return err
		}
		defer e.logger.Sync()

		if err := e.restore(cmd.Context()); err != nil {
			return err
		}
		p, err := e.mgr.UpdateProfile(cmd.Context(), upd)
		if err != nil {
			return err
		}
		fmt.Printf("Profile updated: %s", p.FullName)
		if p.Bio != "" {
			fmt.Printf(" (%s)", p.Bio)
		}
		fmt.Println()
		return nil
	},
}
