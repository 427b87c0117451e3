// cmd/tools/questions/main.go
package main

import (
	"flag"
	"fmt"
	"os"
	"time"

	"whitelist-intake/pkg/registry"
)

var questionsPath string

func main() {
	addCmd := flag.NewFlagSet("add", flag.ExitOnError)
	listCmd := flag.NewFlagSet("list", flag.ExitOnError)
	validateCmd := flag.NewFlagSet("validate", flag.ExitOnError)

	for _, fs := range []*flag.FlagSet{addCmd, listCmd, validateCmd} {
		fs.StringVar(&questionsPath, "path", "configs/questions.json", "Path to question set file")
	}

	idAdd := addCmd.String("id", "", "Question ID (e.g., nickname)")
	textAdd := addCmd.String("text", "", "Question text shown to the applicant")

	if len(os.Args) < 2 {
		help()
		os.Exit(1)
	}

	switch os.Args[1] {
	case "add":
		addCmd.Parse(os.Args[2:])
		if *idAdd == "" || *textAdd == "" {
			fmt.Println("Error: id and text are required for add.")
			addCmd.Usage()
			os.Exit(1)
		}
		if err := addQuestion(*idAdd, *textAdd); err != nil {
			fmt.Printf("Error adding question: %v\n", err)
			os.Exit(1)
		}
		fmt.Printf("Added question: %s\n", *idAdd)

	case "list":
		listCmd.Parse(os.Args[2:])
		if err := listQuestions(); err != nil {
			fmt.Printf("Error listing questions: %v\n", err)
			os.Exit(1)
		}

	case "validate":
		validateCmd.Parse(os.Args[2:])
		set, err := registry.LoadQuestionSet(questionsPath)
		if err != nil {
			fmt.Printf("Question set validation failed: %v\n", err)
			os.Exit(1)
		}
		fmt.Printf("Question set validation passed. Found %d questions.\n", set.Count())

	case "help":
		fallthrough
	default:
		help()
	}
}

func addQuestion(id, text string) error {
	set, err := registry.LoadQuestionSet(questionsPath)
	if err != nil {
		return fmt.Errorf("failed to load question set: %w", err)
	}
	for _, q := range set.Questions {
		if q.ID == id {
			return fmt.Errorf("question with ID %s already exists", id)
		}
	}
	set.Questions = append(set.Questions, registry.Question{ID: id, Text: text})
	set.LastUpdated = time.Now().Format(time.RFC3339)
	return registry.SaveQuestionSet(set, questionsPath)
}

func listQuestions() error {
	set, err := registry.LoadQuestionSet(questionsPath)
	if err != nil {
		return fmt.Errorf("failed to load question set: %w", err)
	}
	fmt.Printf("Question set %s (%d questions)\n", set.Version, set.Count())
	for i, q := range set.Questions {
		marker := ""
		if i+1 == set.NicknameQuestion {
			marker = " [nickname]"
		}
		fmt.Printf("%d. %s%s\n   %s\n", i+1, q.ID, marker, q.Text)
	}
	if len(set.RejectReasons) > 0 {
		fmt.Println("Reject reasons:")
		for _, r := range set.RejectReasons {
			fmt.Printf("  - %s\n", r)
		}
	}
	return nil
}

func help() {
	fmt.Print(`
Usage: questions <command> [flags]

Commands:
  add      Append a question to the set
  list     Print the question set
  validate Validate the question set file
  help     Show this help message

Examples:
  questions add -id voice -text "Can you join a voice channel?"
  questions list -path configs/questions.json
  questions validate -path configs/questions.json

Use 'questions <command> -h' for more information about a command.
` + "\n")
}
