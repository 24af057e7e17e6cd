package auth

import (
	"fmt"
	"io"
	"strings"
)

// ShowClientSecretGuide explains how to create the OAuth client secret file
func ShowClientSecretGuide(w io.Writer, path string) {
	fmt.Fprintln(w, strings.Repeat("=", 72))
	fmt.Fprintln(w, "GOOGLE PHOTOS API CLIENT SETUP")
	fmt.Fprintln(w, strings.Repeat("=", 72))
	fmt.Fprintln(w)
	fmt.Fprintf(w, "gpbackup could not read the OAuth client secret file at %q.\n", path)
	fmt.Fprintln(w)
	fmt.Fprintln(w, "STEP 1: Open https://console.cloud.google.com/ and select or create a project")
	fmt.Fprintln(w, "STEP 2: Enable the \"Photos Library API\" under APIs & Services > Library")
	fmt.Fprintln(w, "STEP 3: Configure the OAuth consent screen and add your account as a test user")
	fmt.Fprintln(w, "STEP 4: Create credentials > OAuth client ID > Application type \"Desktop app\"")
	fmt.Fprintln(w, "STEP 5: Download the JSON and save it as the client secret file")
	fmt.Fprintln(w)
	fmt.Fprintln(w, "Then run `gpbackup auth login` from a terminal once. Later runs,")
	fmt.Fprintln(w, "including cron jobs, reuse the stored credential.")
	fmt.Fprintln(w)
	fmt.Fprintln(w, "The stored credential grants full access to your photo library.")
	fmt.Fprintln(w, "Keep it readable only by the user running backups.")
	fmt.Fprintln(w, strings.Repeat("=", 72))
}
