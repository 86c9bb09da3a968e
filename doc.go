// Package finntra provides the domain types of a personal finance tracker:
// the user's profile, bank accounts, savings goals, income and expense
// transactions and display settings.
//
// The data lives in a hosted backend. The satellite packages implement the
// moving parts around these types:
//   - rates: a cache of USD-pivot exchange rates refreshed from a quote service.
//   - currency: conversion and display formatting on top of the rate cache.
//   - store: the remote tables, their change feed and the object storage.
//   - auth: access token verification and the sign-in/sign-out session stream.
//   - state: the per-user synchronizer owning the in-memory snapshot.
//   - report, importer, assistant: PDF/markdown statements, file import and the
//     language-model proxy.
//
// The server and the command line tool in cmd/ wire them together.
package finntra
