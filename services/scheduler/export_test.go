package scheduler

var RegistrationsCompleted = registrationsCompleted
