package output

import "strings"

var unsupportedFilenameCharacters = strings.NewReplacer("/", "-", ":", "-", "\\", "-", " ", "_")

func planFileName(planName string) string {
	return unsupportedFilenameCharacters.Replace(planName) + ".json"
}
