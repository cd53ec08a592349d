package main

import (
	"os"
	"time"

	"github.com/pkg/errors"
	"gopkg.in/yaml.v3"

	"github.com/mohamed-arabi16/studybuddy-bright-sub000/core/schedule"
)

type (
	// fixture is a user's planning input as written in a YAML file.
	fixture struct {
		Today       time.Time            `yaml:"today"`
		Preferences schedule.Preferences `yaml:"preferences"`
		Courses     []fixtureCourse      `yaml:"courses"`
	}

	fixtureCourse struct {
		schedule.Course `yaml:",inline"`
		Topics          []schedule.Topic `yaml:"topics"`
	}
)

func loadFixture(path string) (fixture, error) {
	var fx fixture
	data, err := os.ReadFile(path)
	if err != nil {
		return fx, errors.Wrap(err, "reading fixture")
	}
	if err = yaml.Unmarshal(data, &fx); err != nil {
		return fx, errors.Wrapf(err, "parsing fixture %s", path)
	}

	for i := range fx.Courses {
		c := &fx.Courses[i]
		if c.HasExam() {
			c.ExamDate = schedule.DateOf(c.ExamDate)
		}
		for j := range c.Topics {
			c.Topics[j].CourseID = c.ID
		}
	}
	for i, d := range fx.Preferences.BlackoutDates {
		fx.Preferences.BlackoutDates[i] = schedule.DateOf(d)
	}
	return fx, nil
}

func (fx fixture) courses() []schedule.Course {
	courses := make([]schedule.Course, 0, len(fx.Courses))
	for _, c := range fx.Courses {
		courses = append(courses, c.Course)
	}
	return courses
}

func (fx fixture) topics() []schedule.Topic {
	var topics []schedule.Topic
	for _, c := range fx.Courses {
		topics = append(topics, c.Topics...)
	}
	return topics
}
